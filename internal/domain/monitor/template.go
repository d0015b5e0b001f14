package monitor

import (
	"fmt"
	"strings"
)

// DefaultTemplate is used when no announcement template is configured.
const DefaultTemplate = "{{name}}さん、{{bed}}番ベッドへお迎えをお願いします。"

// Template renders announcement text. It substitutes {{name}} and {{bed}};
// other text is spoken as written.
type Template struct {
	text string
}

func NewTemplate(text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	if !strings.Contains(text, "{{name}}") {
		return nil, fmt.Errorf("announcement template must contain {{name}}: %q", text)
	}
	return &Template{text: text}, nil
}

func (t *Template) Render(name, bed string) string {
	return strings.NewReplacer("{{name}}", name, "{{bed}}", bed).Replace(t.text)
}

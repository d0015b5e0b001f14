package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// splitCommand splits a command line on whitespace. Quoting is not
// supported; wrap complex invocations in a script.
func splitCommand(line string) ([]string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return fields, nil
}

// CommandSpeaker runs an on-device text-to-speech program, for example
// "say -v Kyoko {text}" or "espeak-ng -v {lang} {text}". When neither
// placeholder appears the text is passed as the last argument. Cancelling
// the context kills the process, which stops playback.
type CommandSpeaker struct {
	argv []string
}

func NewCommandSpeaker(line string) (*CommandSpeaker, error) {
	argv, err := splitCommand(line)
	if err != nil {
		return nil, fmt.Errorf("speech command: %w", err)
	}
	return &CommandSpeaker{argv: argv}, nil
}

func (s *CommandSpeaker) args(text, lang string) []string {
	out := make([]string, 0, len(s.argv)+1)
	substituted := false
	for _, a := range s.argv[1:] {
		if strings.Contains(a, "{text}") || strings.Contains(a, "{lang}") {
			substituted = substituted || strings.Contains(a, "{text}")
			a = strings.ReplaceAll(a, "{text}", text)
			a = strings.ReplaceAll(a, "{lang}", lang)
		}
		out = append(out, a)
	}
	if !substituted {
		out = append(out, text)
	}
	return out
}

func (s *CommandSpeaker) Speak(ctx context.Context, text, lang string) error {
	cmd := exec.CommandContext(ctx, s.argv[0], s.args(text, lang)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", s.argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CommandPlayer writes audio to a temporary file and runs a player on it,
// e.g. "aplay" or "afplay". A "{file}" placeholder marks where the path
// goes; otherwise it is appended.
type CommandPlayer struct {
	argv []string
}

func NewCommandPlayer(line string) (*CommandPlayer, error) {
	argv, err := splitCommand(line)
	if err != nil {
		return nil, fmt.Errorf("audio player command: %w", err)
	}
	return &CommandPlayer{argv: argv}, nil
}

func (p *CommandPlayer) args(path string) []string {
	out := make([]string, 0, len(p.argv))
	placed := false
	for _, a := range p.argv[1:] {
		if strings.Contains(a, "{file}") {
			a = strings.ReplaceAll(a, "{file}", path)
			placed = true
		}
		out = append(out, a)
	}
	if !placed {
		out = append(out, path)
	}
	return out
}

func (p *CommandPlayer) Play(ctx context.Context, audio []byte) error {
	f, err := os.CreateTemp("", "callboard-*.audio")
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close audio file: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.argv[0], p.args(f.Name())...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", p.argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

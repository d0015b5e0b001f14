package monitor

import (
	"bytes"
	"context"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/callboard/callboard/internal/domain/callslot"
	"github.com/callboard/callboard/internal/platform/auth"
)

// SessionLister reads one session's slots in bed order.
type SessionLister interface {
	ListSession(ctx context.Context, sessionKey string) ([]*callslot.Slot, error)
}

// Handler serves the merged board to monitor, staff and driver screens.
type Handler struct {
	lister SessionLister
	src    Source
	shifts []string
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(lister SessionLister, src Source, defaultShifts []string, logger zerolog.Logger) *Handler {
	return &Handler{
		lister: lister,
		src:    src,
		shifts: defaultShifts,
		logger: logger.With().Str("component", "board").Logger(),
		now:    time.Now,
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/board", auth.RequireRole(auth.RoleViewer, auth.RoleStaff))
	g.GET("", h.Board)
	g.GET("/stream", h.Stream)
}

type boardQuery struct {
	keys     []string
	statuses map[callslot.Status]bool
}

func (h *Handler) parseQuery(c echo.Context) (*boardQuery, error) {
	facility := c.QueryParam("facility")
	if facility == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "facility is required")
	}

	date := h.now()
	if d := c.QueryParam("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		date = parsed
	}

	shifts := h.shifts
	if s := c.QueryParam("shifts"); s != "" {
		shifts = splitComma(s)
	}

	q := &boardQuery{}
	for _, k := range callslot.SessionKeys(date, facility, shifts) {
		if _, err := callslot.ParseSessionKey(k.String()); err != nil {
			return nil, callslot.HTTPError(err)
		}
		q.keys = append(q.keys, k.String())
	}

	if s := c.QueryParam("status"); s != "" {
		q.statuses = make(map[callslot.Status]bool)
		for _, part := range splitComma(s) {
			st, err := callslot.ParseStatus(part)
			if err != nil {
				return nil, callslot.HTTPError(err)
			}
			q.statuses[st] = true
		}
	}
	return q, nil
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// filter keeps only slots with one of the requested statuses; the driver
// screen asks for discharged patients only.
func (q *boardQuery) filter(v View) View {
	if len(q.statuses) == 0 {
		return v
	}
	kept := make([]*callslot.Slot, 0, len(v.Slots))
	for _, s := range v.Slots {
		if q.statuses[s.Status] {
			kept = append(kept, s)
		}
	}
	v.Slots = kept
	return v
}

// Board returns a one-shot merged view of the requested sessions.
func (h *Handler) Board(c echo.Context) error {
	q, err := h.parseQuery(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	v := View{Keys: q.keys, Slots: []*callslot.Slot{}}
	for _, key := range q.keys {
		slots, err := h.lister.ListSession(ctx, key)
		if err != nil {
			if v.Errors == nil {
				v.Errors = make(map[string]string)
			}
			v.Errors[key] = err.Error()
			continue
		}
		v.Slots = append(v.Slots, slots...)
	}
	return c.JSON(http.StatusOK, q.filter(v))
}

// Stream pushes the merged view over server-sent events until the client
// disconnects. Each update patches the #board element and the board signal.
func (h *Handler) Stream(c echo.Context) error {
	q, err := h.parseQuery(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	agg := NewAggregator(ctx, h.src, q.keys, h.logger)
	defer agg.Close()

	sse := datastar.NewSSE(c.Response(), c.Request())
	for {
		select {
		case v, ok := <-agg.Views():
			if !ok {
				return nil
			}
			v = q.filter(v)
			if err := sse.MarshalAndPatchSignals(map[string]any{"board": v}); err != nil {
				return nil
			}
			html, err := renderBoard(v)
			if err != nil {
				h.logger.Error().Err(err).Msg("render board")
				continue
			}
			if err := sse.PatchElements(html); err != nil {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

var boardTemplate = template.Must(template.New("board").Funcs(template.FuncMap{
	"statusLabel": statusLabel,
}).Parse(`<div id="board">
{{- if .Loading}}<p class="loading">読み込み中…</p>{{end}}
{{- range $key, $msg := .Errors}}<p class="error" data-session="{{$key}}">{{$msg}}</p>{{end}}
<table>
<thead><tr><th>ベッド</th><th>氏名</th><th>状態</th></tr></thead>
<tbody>
{{- range .Slots}}
<tr id="slot-{{.ID}}" class="status-{{.Status}}"><td>{{.BedLabel}}</td><td>{{.Name}}</td><td>{{statusLabel .Status}}</td></tr>
{{- end}}
</tbody>
</table>
</div>`))

func statusLabel(s callslot.Status) string {
	switch s {
	case callslot.StatusInTreatment:
		return "治療中"
	case callslot.StatusBeingCalled:
		return "お呼び出し中"
	case callslot.StatusDischarged:
		return "お帰り"
	}
	return string(s)
}

func renderBoard(v View) (string, error) {
	var buf bytes.Buffer
	if err := boardTemplate.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

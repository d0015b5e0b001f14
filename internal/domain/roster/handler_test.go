package roster

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/callboard/callboard/internal/platform/validate"
)

func newTestHandler() (*Handler, *mockRepo, *fakeBatcher, *echo.Echo) {
	repo := newMockRepo()
	slots := newFakeBatcher()
	h := NewHandler(NewService(repo, slots, zerolog.Nop()))
	e := echo.New()
	e.Validator = validate.New()
	return h, repo, slots, e
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected HTTP %d, got nil error", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestHandler_Create(t *testing.T) {
	h, _, _, e := newTestHandler()

	body := `{"facility":"F","name":"Sato","bed_label":"3","day_group":"月水金","shift":"1"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var m MasterPatient
	json.Unmarshal(rec.Body.Bytes(), &m)
	if m.DayGroup != DayGroupMonWedFri {
		t.Errorf("expected mon_wed_fri, got %s", m.DayGroup)
	}
}

func TestHandler_Create_MissingFields(t *testing.T) {
	h, _, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Sato"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Create(e.NewContext(req, httptest.NewRecorder()))
	expectHTTPError(t, err, http.StatusBadRequest)
}

func TestHandler_LoadSession(t *testing.T) {
	h, repo, slots, e := newTestHandler()
	seed(t, repo,
		master("F", "Sato", "1", DayGroupMonWedFri, "1"),
		master("F", "Ito", "2", DayGroupTueThuSat, "1"),
	)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("key")
	c.SetParamValues("2024-06-03_F_1")

	if err := h.LoadSession(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res LoadResult
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.Inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", res.Inserted)
	}
	if len(slots.sessions["2024-06-03_F_1"]) != 1 {
		t.Errorf("expected 1 slot in session")
	}
}

func TestHandler_LoadSession_Sunday(t *testing.T) {
	h, _, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("key")
	c.SetParamValues("2024-06-09_F_1")
	expectHTTPError(t, h.LoadSession(c), http.StatusBadRequest)
}

func TestHandler_LoadSession_BadKey(t *testing.T) {
	h, _, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("key")
	c.SetParamValues("nope")
	expectHTTPError(t, h.LoadSession(c), http.StatusBadRequest)
}

func TestHandler_Get_NotFound(t *testing.T) {
	h, _, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("7b0c1f5e-0d4c-4f57-9a43-1b2d4c2e8f10")
	expectHTTPError(t, h.Get(c), http.StatusNotFound)
}

func TestHandler_List_Paginated(t *testing.T) {
	h, repo, _, e := newTestHandler()
	seed(t, repo,
		master("F", "A", "1", DayGroupMonWedFri, "1"),
		master("F", "B", "2", DayGroupMonWedFri, "1"),
		master("F", "C", "3", DayGroupMonWedFri, "1"),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/roster?facility=F&limit=2", nil)
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Total   int  `json:"total"`
		HasMore bool `json:"has_more"`
		Links   []struct {
			Relation string `json:"relation"`
		} `json:"links"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 3 || !resp.HasMore {
		t.Errorf("unexpected page %+v", resp)
	}
	if len(resp.Links) != 2 {
		t.Errorf("expected self and next links, got %d", len(resp.Links))
	}
}

func TestHandler_ImportAndExport(t *testing.T) {
	h, repo, _, e := newTestHandler()

	xlsx := workbook(t, [][]interface{}{
		{"name", "furigana", "bed", "day_group", "shift"},
		{"Sato", "さとう", "1", "mon_wed_fri", "1"},
	})
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "roster.xlsx")
	fw.Write(xlsx.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/?facility=F", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	if err := h.Import(e.NewContext(req, rec)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.masters) != 1 {
		t.Fatalf("expected 1 master, got %d", len(repo.masters))
	}

	req = httptest.NewRequest(http.MethodGet, "/?facility=F", nil)
	rec = httptest.NewRecorder()
	if err := h.Export(e.NewContext(req, rec)); err != nil {
		t.Fatalf("export: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != xlsxContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentDisposition), "roster_F.xlsx") {
		t.Errorf("unexpected disposition %q", rec.Header().Get(echo.HeaderContentDisposition))
	}
	ms, _, err := ReadWorkbook(rec.Body, "F")
	if err != nil || len(ms) != 1 {
		t.Errorf("expected exported roster to re-import, got %d rows, err %v", len(ms), err)
	}
}

func TestHandler_Import_MissingFacility(t *testing.T) {
	h, _, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	expectHTTPError(t, h.Import(c), http.StatusBadRequest)
}

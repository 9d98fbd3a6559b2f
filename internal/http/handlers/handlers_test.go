package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncall-dispatch/backend/internal/db"
	"github.com/oncall-dispatch/backend/internal/directory"
	"github.com/oncall-dispatch/backend/internal/geocode"
	"github.com/oncall-dispatch/backend/internal/grid"
	"github.com/oncall-dispatch/backend/internal/rotation"
	"github.com/oncall-dispatch/backend/internal/schedule"
	"github.com/oncall-dispatch/backend/internal/service"
	"github.com/oncall-dispatch/backend/internal/session"
	"github.com/oncall-dispatch/backend/internal/spreadsheet"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func rotationWorkbook(t *testing.T) []byte {
	t.Helper()
	d := func(day int) grid.Cell { return grid.Date(grid.Day(2025, 1, day)) }
	tx := grid.Text
	e := grid.Empty()
	data, err := spreadsheet.WriteGrid("On Call", grid.Grid{
		{tx("Market"), tx("Notes"), tx("Start"), d(4), d(11), d(18)},
		{e, e, tx("End"), d(10), d(17), d(24)},
		{tx("Houston"), e, e, tx("4001"), tx("4001"), tx("4001")},
		{tx("Dallas"), e, e, tx("4002"), tx("4002 Reserve"), tx("4002")},
	})
	require.NoError(t, err)
	return data
}

func newTestRouter(t *testing.T) (*gin.Engine, *session.Session) {
	t.Helper()
	sess := session.New()
	sess.SetGeo(geocode.NewIndex([][]string{
		{"78701", "30.2672", "-97.7431", "austin", "TX"},
		{"77002", "29.7604", "-95.3698", "houston", "TX"},
		{"75201", "32.7767", "-96.7970", "dallas", "TX"},
	}))
	sess.SetDirectory(directory.New([][]string{
		{"4001", "Ada", "Lovelace", "South", "Z1", "Field", "Houston", "TX", "77002"},
		{"4002", "Bo", "Diddley", "South", "Z2", "Field", "Dallas", "TX", "75201"},
	}))
	cat := rotation.DefaultCatalog()
	h := &Handler{
		Session: sess,
		Lookup: &service.LookupService{
			Session:                  sess,
			Catalog:                  cat,
			Clock:                    schedule.FixedClock{T: time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC)},
			Mode:                     schedule.ShiftOff,
			NonAvailabilityShiftDays: service.DefaultNonAvailabilityShiftDays,
			Logger:                   zerolog.Nop(),
		},
		Loader:         &service.Loader{Session: sess, Catalog: cat, Logger: zerolog.Nop()},
		Validator:      validator.New(),
		Logger:         zerolog.Nop(),
		MaxUploadBytes: 1 << 20,
	}

	r := gin.New()
	r.GET("/healthz", h.Healthz)
	api := r.Group("/api")
	api.POST("/oncall/rotation", h.UploadRotation)
	api.POST("/oncall/techdb", h.UploadTechDB)
	api.GET("/oncall/rotation/cleaned", h.CleanedRotation)
	api.POST("/oncall/refdata/reload", h.ReloadRefData)
	api.GET("/oncall/weeks", h.Weeks)
	api.GET("/oncall/boundary", h.Boundary)
	api.GET("/oncall/nonavailability", h.NonAvailability)
	api.POST("/lookup", h.LookupTicket)
	api.POST("/lookup/choose", h.ChooseAlternate)
	return r, sess
}

func multipartBody(t *testing.T, fieldName, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func upload(t *testing.T, r *gin.Engine, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, "file", filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func postJSON(r *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	return e["code"].(string)
}

func TestHealthzReportsTables(t *testing.T) {
	r, _ := newTestRouter(t)
	w := get(r, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	tables := decode(t, w)["tables"].(map[string]any)
	assert.Equal(t, true, tables["ZIP DB"].(map[string]any)["loaded"])
	assert.Equal(t, false, tables["OnCall sheet"].(map[string]any)["loaded"])
}

func TestLookupBeforeRotation(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(r, "/api/lookup", gin.H{"zip": "78701", "state": "TX", "date": "2025-01-07"})
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "NOT_LOADED", errorCode(t, w))

	w = get(r, "/api/oncall/rotation/cleaned", nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestUploadRotationThenLookupAndChoose(t *testing.T) {
	r, _ := newTestRouter(t)
	w := upload(t, r, "/api/oncall/rotation", "oncall.xlsx", rotationWorkbook(t))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(3), decode(t, w)["weeks"])

	w = postJSON(r, "/api/lookup", gin.H{"zip": "78701", "state": "tx", "date": "2025-01-07"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode(t, w)
	assert.Equal(t, "Low", view["confidence"])
	assert.Equal(t, true, view["require_choice"])
	assert.Nil(t, view["technician"])
	assert.Len(t, view["choices"], 2)

	w = postJSON(r, "/api/lookup/choose", gin.H{"zip": "78701", "state": "TX", "date": "2025-01-07", "choice": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view = decode(t, w)
	assert.Equal(t, false, view["require_choice"])
	tech := view["technician"].(map[string]any)
	assert.Equal(t, "Ada Lovelace", tech["name"])
	assert.Equal(t, "Low", view["confidence"])

	w = postJSON(r, "/api/lookup/choose", gin.H{"zip": "78701", "state": "TX", "date": "2025-01-07"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookupErrorMapping(t *testing.T) {
	r, _ := newTestRouter(t)
	require.Equal(t, http.StatusOK, upload(t, r, "/api/oncall/rotation", "oncall.xlsx", rotationWorkbook(t)).Code)

	cases := map[string]struct {
		payload gin.H
		status  int
		code    string
	}{
		"boundary date asks for ampm": {gin.H{"zip": "78701", "state": "TX", "date": "2025-01-12"}, http.StatusConflict, "AMBIGUOUS_DATE"},
		"date outside rotation":       {gin.H{"zip": "78701", "state": "TX", "date": "2024-06-01"}, http.StatusUnprocessableEntity, "OUT_OF_RANGE"},
		"zip not indexed":             {gin.H{"zip": "10001", "state": "NY", "date": "2025-01-07"}, http.StatusNotFound, "UNKNOWN_LOCATION"},
		"state not two letters":       {gin.H{"zip": "78701", "state": "Texas", "date": "2025-01-07"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		"no location":                 {gin.H{"state": "TX", "date": "2025-01-07"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		"unparseable date":            {gin.H{"zip": "78701", "state": "TX", "date": "someday"}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := postJSON(r, "/api/lookup", tc.payload)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, errorCode(t, w))
		})
	}

	w := postJSON(r, "/api/lookup", gin.H{"zip": "78701", "state": "TX", "date": "2025-01-12"})
	details := decode(t, w)["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, float64(1), details["boundary_week"])
}

func TestCleanedRotationETag(t *testing.T) {
	r, _ := newTestRouter(t)
	require.Equal(t, http.StatusOK, upload(t, r, "/api/oncall/rotation", "oncall.xlsx", rotationWorkbook(t)).Code)

	w := get(r, "/api/oncall/rotation/cleaned", nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Contains(t, w.Header().Get("Content-Disposition"), service.CleanedDownloadName)

	w = get(r, "/api/oncall/rotation/cleaned", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, w.Code)
}

func TestUploadRejectsBadFiles(t *testing.T) {
	r, _ := newTestRouter(t)
	w := upload(t, r, "/api/oncall/rotation", "oncall.csv", []byte("a,b"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = upload(t, r, "/api/oncall/techdb", "techs.xlsx", []byte("not a workbook"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "STRUCTURE_ERROR", errorCode(t, w))
}

func TestWeeksAndBoundary(t *testing.T) {
	r, _ := newTestRouter(t)
	require.Equal(t, http.StatusOK, upload(t, r, "/api/oncall/rotation", "oncall.xlsx", rotationWorkbook(t)).Code)

	w := get(r, "/api/oncall/weeks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 3)

	w = get(r, "/api/oncall/boundary?date=2025-01-12", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["is_boundary"])

	w = get(r, "/api/oncall/boundary", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/api/oncall/nonavailability?date=2025-01-07&state=tx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "2025-01-06", body["date"])
	assert.Equal(t, "TX", body["state"])
}

func TestReloadWithoutProvider(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(r, "/api/oncall/refdata/reload", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHealthzIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := db.New(context.Background(), url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer store.Close()

	h := &Handler{Session: session.New(), Store: store, Logger: zerolog.Nop()}
	r := gin.New()
	r.GET("/healthz", h.Healthz)

	w := get(r, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

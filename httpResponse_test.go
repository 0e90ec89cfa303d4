package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/models"
	"github.com/mmdatafocus/salon_backend/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", utils.ValidationErrorf("bad date"), http.StatusBadRequest, errorCodeValidation},
		{"not found", utils.NotFoundError("Client", 4), http.StatusBadRequest, errorCodeValidation},
		{"slot taken", &models.ConflictError{Interval: models.Interval{Kind: models.IntervalKindBooking}}, http.StatusConflict, errorCodeConflict},
		{"wrapped conflict", fmt.Errorf("reschedule: %w", &models.ConflictError{}), http.StatusConflict, errorCodeConflict},
		{"duplicate", utils.IntegrityErrorf("duplicate phone"), http.StatusConflict, errorCodeIntegrity},
		{"stock", utils.InsufficientErrorf("insufficient stock"), http.StatusUnprocessableEntity, errorCodeInsufficient},
		{"storage", utils.ClassifyStorageError(errors.New("connection reset")), http.StatusServiceUnavailable, errorCodeUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, errorCodeInternal},
	}
	for _, tc := range cases {
		status, code := statusForError(tc.err)
		if status != tc.status || code != tc.code {
			t.Fatalf("%s: expected %d %s, got %d %s", tc.name, tc.status, tc.code, status, code)
		}
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var body apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body
}

func TestRespondError_MasksInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	respondError(c, errors.New("dial tcp 10.0.0.3:3306: secret detail"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := decodeResponse(t, w)
	if body.Ok || body.Message != "internal error" || body.Code != errorCodeInternal {
		t.Fatalf("unexpected body %+v", body)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/anything", nil)
	respondError(c, utils.InsufficientErrorf("insufficient stock for Gel"))
	body = decodeResponse(t, w)
	if w.Code != http.StatusUnprocessableEntity || body.Message != "insufficient stock for Gel" {
		t.Fatalf("domain errors keep their message, got %d %+v", w.Code, body)
	}
}

func TestRequestHelpers(t *testing.T) {
	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		from, to, ok := queryRange(c)
		if !ok {
			return
		}
		respondOK(c, gin.H{"id": id, "from": utils.FormatDate(from), "to": utils.FormatDate(to)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/3?from=2026-03-01&to=2026-03-31", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	body := decodeResponse(t, w)
	data, _ := body.Data.(map[string]any)
	if data["from"] != "2026-03-01" || data["to"] != "2026-03-31" || data["id"] != float64(3) {
		t.Fatalf("unexpected data %v", body.Data)
	}

	for _, path := range []string{"/items/abc", "/items/0", "/items/3?from=03-01-2026"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
}

func TestRouter_ReadinessGate(t *testing.T) {
	if config.GetDB() != nil {
		t.Skip("database already connected")
	}
	r := newRouter(config.GetLogger())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("healthz: expected 204, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/professionals", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the database is ready, got %d", w.Code)
	}
	if body := decodeResponse(t, w); body.Code != errorCodeUnavailable {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example , ,https://b.example")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatalf("blank list should be nil")
	}
}

func TestCorsMiddleware_ProductionAllowlist(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv(corsOriginsEnv, "https://salon.example, https://admin.salon.example")

	r := gin.New()
	r.Use(corsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	w := get("https://admin.salon.example")
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "https://admin.salon.example" {
		t.Fatalf("allowlisted origin: got %d %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w := get("https://evil.example"); w.Code != http.StatusForbidden {
		t.Fatalf("unknown origin: expected 403, got %d", w.Code)
	}
}

func TestCorsMiddleware_ProductionWithoutAllowlistDeniesAll(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv(corsOriginsEnv, "")

	r := gin.New()
	r.Use(corsMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://salon.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected every origin to be denied, got %d", w.Code)
	}
}

func TestSchedulingHandlers_RequireTimes(t *testing.T) {
	r := gin.New()
	r.POST("/bookings/propose", proposeBookingHandler)
	r.PUT("/opening-hours", openingHoursHandler)

	cases := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/bookings/propose", `{"professional_id":1,"date":"2026-10-20","duration_minutes":30}`},
		{http.MethodPut, "/opening-hours", `{"date":"2026-10-20","close":"19:00"}`},
		{http.MethodPut, "/opening-hours", `{"date":"2026-10-20","open":"08:00"}`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d %s", tc.method, tc.body, w.Code, w.Body.String())
		}
		if body := decodeResponse(t, w); body.Code != errorCodeValidation {
			t.Fatalf("%s: unexpected body %+v", tc.body, body)
		}
	}
}

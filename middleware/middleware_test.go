package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TIANLI0/RugPalette/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery(), Logger(), CORS())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })
	r.GET("/panic", func(c *gin.Context) { panic("secret internal detail") })
	return r
}

func TestRequestID(t *testing.T) {
	r := newTestEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	id := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated request id %q is not a UUID", id)
	}
	if w.Body.String() != id {
		t.Errorf("context id %q != header id %q", w.Body.String(), id)
	}

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, given)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != given {
		t.Errorf("incoming request id not kept")
	}

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) == "<script>" {
		t.Errorf("invalid request id was echoed")
	}
}

func TestRecoveryHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	newTestEngine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body model.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "Something went wrong on the server!" || body.Error != "" {
		t.Errorf("body = %+v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	w := httptest.NewRecorder()
	newTestEngine().ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/ok", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

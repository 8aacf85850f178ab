package rest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/spinal-tech/spinal/core/logger"
	"github.com/spinal-tech/spinal/core/store"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	return body
}

func TestErrorEnvelopes(t *testing.T) {
	testCases := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
	}{
		{"not found", func(w http.ResponseWriter) { NotFound(w, "gone") }, http.StatusNotFound},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "no") }, http.StatusUnauthorized},
		{"expired", func(w http.ResponseWriter) { ExpiredToken(w, "stale") }, http.StatusRequestTimeout},
		{"redirect", func(w http.ResponseWriter) { RedirectRequest(w, "elsewhere") }, http.StatusExpectationFailed},
		{"unknown", func(w http.ResponseWriter) { Unknown(w, "boom") }, http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.write(rec)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			body := decode(t, rec)
			if body["error"] != true {
				t.Fatal("error envelope must carry the error flag")
			}
			if body["info"] == "" {
				t.Fatal("error envelope must carry guidance text")
			}
		})
	}
}

func TestBadRequestListsRequiredFields(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, []string{"name", "email"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	fields, ok := body["requiredFields"].([]any)
	if !ok || len(fields) != 2 {
		t.Fatalf("unexpected required fields: %v", body["requiredFields"])
	}
}

func TestRowsHeader(t *testing.T) {
	if TotalRowsHeader != "totalRows" {
		t.Fatalf("unexpected header name %q", TotalRowsHeader)
	}
	rec := httptest.NewRecorder()
	Rows(rec, []string{}, 17)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(TotalRowsHeader); got != "17" {
		t.Fatalf("expected totalRows 17, got %q", got)
	}
}

func TestStorageMapping(t *testing.T) {
	rlog := logger.Default()

	rec := httptest.NewRecorder()
	Storage(rec, rlog, &store.ConstraintError{Kind: "unique_violation", Fields: []string{"email"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("constraint violations must map to 400, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["type"] != "unique_violation" {
		t.Fatalf("structured detail lost: %v", body)
	}

	rec = httptest.NewRecorder()
	Storage(rec, rlog, store.ErrNotFound)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("not-found must map to 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	Storage(rec, rlog, &store.StorageError{Op: "create", Err: http.ErrBodyNotAllowed})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("storage errors must map to 500, got %d", rec.Code)
	}
	body = decode(t, rec)
	// no internal detail leaks to the caller
	if body["info"] != "storage triggered an error, please check your request" {
		t.Fatalf("unexpected info: %v", body["info"])
	}
}

/*Package rest writes the uniform JSON response envelope.

Success responses carry the raw payload; failures carry
{"error": true, ...} with the status codes of the framework's error
taxonomy. Storage failures are mapped here so that no endpoint leaks
internal detail to the caller.
*/
package rest

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/spinal-tech/spinal/core"
	"github.com/spinal-tech/spinal/core/store"
)

// TotalRowsHeader carries the total collection count on paginated list
// responses.
var TotalRowsHeader = core.PropertyNameToHeader("total_rows")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// OK writes a 200 response with the given payload.
func OK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

// Rows writes a 200 response with one page of rows and the total count in
// the TotalRowsHeader header. An empty page is still a success.
func Rows(w http.ResponseWriter, rows any, total int) {
	w.Header().Set(TotalRowsHeader, strconv.Itoa(total))
	writeJSON(w, http.StatusOK, rows)
}

// NotFound writes a 404 error envelope.
func NotFound(w http.ResponseWriter, info string) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": true, "info": info})
}

// BadRequest writes a 400 error envelope listing the required fields. The
// argument may also be a plain message for malformed payloads.
func BadRequest(w http.ResponseWriter, requiredFields any) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": true, "requiredFields": requiredFields})
}

// Validation writes a 400 error envelope carrying the structured detail of a
// storage constraint violation.
func Validation(w http.ResponseWriter, kind string, fields any) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": true, "type": kind, "fields": fields})
}

// Unauthorized writes a 401 error envelope with guidance text.
func Unauthorized(w http.ResponseWriter, info string) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{"error": true, "info": info})
}

// ExpiredToken writes a 408 error envelope, signaling the client to
// re-authenticate rather than retry the same credential.
func ExpiredToken(w http.ResponseWriter, info string) {
	writeJSON(w, http.StatusRequestTimeout, map[string]any{"error": true, "info": info})
}

// RedirectRequest writes a 417 error envelope, asking the client to redirect
// the request elsewhere.
func RedirectRequest(w http.ResponseWriter, info string) {
	writeJSON(w, http.StatusExpectationFailed, map[string]any{"error": true, "info": info})
}

// Unknown writes a 500 error envelope with a generic message.
func Unknown(w http.ResponseWriter, info string) {
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": true, "info": info})
}

// Storage maps a persistence failure to the response taxonomy. Constraint
// violations become validation responses with the store's structured detail;
// anything else is logged server-side and answered with a generic message.
func Storage(w http.ResponseWriter, rlog *logrus.Entry, err error) {
	switch e := err.(type) {
	case *store.ConstraintError:
		Validation(w, e.Kind, e.Fields)
	default:
		if err == store.ErrNotFound {
			NotFound(w, "record not found")
			return
		}
		rlog.WithError(err).Errorln("request returned a storage error")
		Unknown(w, "storage triggered an error, please check your request")
	}
}

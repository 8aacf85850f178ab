package generic

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/spinal-tech/spinal/core/descriptor"
	"github.com/spinal-tech/spinal/core/rest"
)

type contextKeyPayloadType struct{}

var contextKeyPayload = &contextKeyPayloadType{}

// PayloadFromContext returns the request payload decoded by the
// required-field precondition.
func PayloadFromContext(ctx context.Context) (map[string]any, bool) {
	payload, ok := ctx.Value(contextKeyPayload).(map[string]any)
	return payload, ok
}

func contextWithPayload(ctx context.Context, payload map[string]any) context.Context {
	return context.WithValue(ctx, contextKeyPayload, payload)
}

// Require verifies that every required field is present as a key in the JSON
// request payload. Presence means key existence, not value truthiness. On
// failure the wrapped handler never runs; the response is a bad-request
// envelope carrying the full required-field list. On success the decoded
// payload is attached to the request context.
func Require(fields []string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{}
		if r.Body != nil {
			// a missing or malformed body leaves the payload empty; every
			// required field then reports as missing
			json.NewDecoder(r.Body).Decode(&payload)
		}
		for _, field := range fields {
			if _, ok := payload[field]; !ok {
				rest.BadRequest(w, fields)
				return
			}
		}
		next(w, r.WithContext(contextWithPayload(r.Context(), payload)))
	}
}

// RequireForModel derives the required fields from the model descriptor and
// wraps the handler with Require.
func RequireForModel(d *descriptor.Descriptor, includeIdentity bool, next http.HandlerFunc) http.HandlerFunc {
	return Require(d.RequiredFields(includeIdentity), next)
}

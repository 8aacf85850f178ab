/*Package generic synthesizes the standard endpoint set for a model.

Given a model descriptor and a mount point, Synthesize registers list,
count, filtered list/count, get-by-id, find, create, update and delete
endpoints whose behavior is derived entirely from the descriptor's
attribute metadata: required-field validation, password digesting and
ownership injection.
*/
package generic

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/spinal-tech/spinal/core"
	"github.com/spinal-tech/spinal/core/access"
	"github.com/spinal-tech/spinal/core/descriptor"
	"github.com/spinal-tech/spinal/core/logger"
	"github.com/spinal-tech/spinal/core/resolve"
	"github.com/spinal-tech/spinal/core/rest"
	"github.com/spinal-tech/spinal/core/store"
)

// PageSize is the fixed page size of the generated list endpoints.
const PageSize = 20

// digestPattern matches a value that already is a password digest.
var digestPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// Options configures the synthesizer.
type Options struct {
	// Store is the persistence capability. Mandatory.
	Store store.Store
	// Models is the model registry the placeholder resolver runs against.
	// Mandatory.
	Models *descriptor.Registry
	// Notifier receives create/update/delete notifications. Optional.
	Notifier core.Notifier
}

type endpoints struct {
	desc   *descriptor.Descriptor
	store  store.Store
	models *descriptor.Registry
	notify core.Notifier
}

// Synthesize registers the generated endpoints for the model on the router.
func Synthesize(router *mux.Router, d *descriptor.Descriptor, o Options) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := d.Identity(); !ok {
		return fmt.Errorf("model %s has no identity attribute", d.Name)
	}
	e := &endpoints{desc: d, store: o.Store, models: o.Models, notify: o.Notifier}

	// the manifest and create routes answer on the bare mount point as well
	// as on its trailing-slash form
	router.HandleFunc("", e.manifest).Methods(http.MethodGet)
	router.HandleFunc("/", e.manifest).Methods(http.MethodGet)
	router.HandleFunc("/all", e.list).Methods(http.MethodGet)
	router.HandleFunc("/count", e.count).Methods(http.MethodGet)
	router.HandleFunc("/all", e.filteredList).Methods(http.MethodPost)
	router.HandleFunc("/count", e.filteredCount).Methods(http.MethodPost)
	router.HandleFunc("/find", e.find).Methods(http.MethodPost)
	create := RequireForModel(d, false, e.create)
	router.HandleFunc("", create).Methods(http.MethodPost)
	router.HandleFunc("/", create).Methods(http.MethodPost)
	router.HandleFunc("/{id}", e.getByID).Methods(http.MethodGet)
	router.HandleFunc("/{id}", e.update).Methods(http.MethodPatch)
	router.HandleFunc("/{id}", e.destroy).Methods(http.MethodDelete)
	return nil
}

func (e *endpoints) emit(op core.Operation, record store.Record) {
	if e.notify == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	e.notify.Notify(e.desc.Name, op, payload)
}

// manifest enumerates the supported operations and the model's attributes.
// No side effects, always succeeds.
func (e *endpoints) manifest(w http.ResponseWriter, r *http.Request) {
	rest.OK(w, map[string]any{
		"paths": []string{
			"GET /all",
			"GET /count",
			"POST /all (filter)",
			"POST /count (filter)",
			"POST /find (filter)",
			"GET /:id",
			"DELETE /:id",
			"POST / (create new " + e.desc.Name + " model)",
			"PATCH /:id (update existing " + e.desc.Name + " model)",
		},
		"attributes": e.desc.AttributeNames(),
	})
}

func pageOf(r *http.Request) store.Page {
	page := 0
	if value := r.URL.Query().Get("page"); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			page = n
		}
	}
	return store.Page{
		Offset: page * PageSize,
		Limit:  PageSize,
		Order:  r.URL.Query().Get("order"),
	}
}

func (e *endpoints) list(w http.ResponseWriter, r *http.Request) {
	result, err := e.store.FindAndCountAll(r.Context(), e.desc.Name, nil, pageOf(r))
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	rest.Rows(w, result.Rows, result.Total)
}

func (e *endpoints) count(w http.ResponseWriter, r *http.Request) {
	count, err := e.store.Count(r.Context(), e.desc.Name, nil)
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	rest.OK(w, count)
}

// filterBody decodes the request body into a filter, requiring it to be a
// non-empty mapping, and resolves model placeholders in place.
func (e *endpoints) filterBody(w http.ResponseWriter, r *http.Request) (store.Filter, bool) {
	filter := store.Filter{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&filter)
	}
	if len(filter) == 0 {
		rest.BadRequest(w, e.desc.Name+" filter requires body")
		return nil, false
	}
	resolve.Resolve(filter, e.models.Handles())
	return filter, true
}

func (e *endpoints) filteredList(w http.ResponseWriter, r *http.Request) {
	filter, ok := e.filterBody(w, r)
	if !ok {
		return
	}
	result, err := e.store.FindAndCountAll(r.Context(), e.desc.Name, filter, pageOf(r))
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	rest.Rows(w, result.Rows, result.Total)
}

func (e *endpoints) filteredCount(w http.ResponseWriter, r *http.Request) {
	filter, ok := e.filterBody(w, r)
	if !ok {
		return
	}
	count, err := e.store.Count(r.Context(), e.desc.Name, filter)
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	rest.OK(w, count)
}

func (e *endpoints) find(w http.ResponseWriter, r *http.Request) {
	filter, ok := e.filterBody(w, r)
	if !ok {
		return
	}
	record, err := e.store.Find(r.Context(), e.desc.Name, filter)
	if err == store.ErrNotFound {
		rest.NotFound(w, e.desc.Name+" cannot be found")
		return
	}
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	rest.OK(w, record)
}

func (e *endpoints) getByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := e.store.FindByID(r.Context(), e.desc.Name, id)
	if err == store.ErrNotFound {
		rest.NotFound(w, fmt.Sprintf("%s #%s cannot be found", e.desc.Name, id))
		return
	}
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	rest.OK(w, record)
}

// DigestPassword replaces a plain password attribute value with its one-way
// digest. A value that already is a digest passes through unchanged, so a
// double submission stays idempotent.
func DigestPassword(payload map[string]any) {
	value, ok := payload["password"].(string)
	if !ok || value == "" || digestPattern.MatchString(value) {
		return
	}
	sum := md5.Sum([]byte(value))
	payload["password"] = hex.EncodeToString(sum[:])
}

func (e *endpoints) create(w http.ResponseWriter, r *http.Request) {
	payload, ok := PayloadFromContext(r.Context())
	if !ok {
		payload = map[string]any{}
	}
	DigestPassword(payload)

	// ownership injection: when the model has an owner attribute and the
	// caller did not supply it, the authenticated identity becomes the owner
	if owner, hasOwner := e.desc.Owner(); hasOwner {
		if _, supplied := payload[owner.Name]; !supplied {
			if session := access.SessionFromContext(r.Context()); session != nil && session.Owner != nil {
				payload[owner.Name] = session.Owner.ID
			}
		}
	}

	record, err := e.store.Create(r.Context(), e.desc.Name, payload)
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	e.emit(core.OperationCreate, record)
	rest.OK(w, record)
}

// recordID returns the identity for an item operation: the payload's
// identity attribute when supplied, the path parameter otherwise.
func (e *endpoints) recordID(r *http.Request, payload map[string]any) string {
	identity, _ := e.desc.Identity()
	if value, ok := payload[identity.Name].(string); ok && value != "" {
		return value
	}
	return mux.Vars(r)["id"]
}

func (e *endpoints) update(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&payload)
	}
	DigestPassword(payload)

	id := e.recordID(r, payload)
	if _, err := e.store.FindByID(r.Context(), e.desc.Name, id); err != nil {
		if err == store.ErrNotFound {
			rest.NotFound(w, fmt.Sprintf("%s #%s cannot be found", e.desc.Name, id))
			return
		}
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}

	record, err := e.store.Update(r.Context(), e.desc.Name, id, payload)
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	e.emit(core.OperationUpdate, record)
	rest.OK(w, record)
}

func (e *endpoints) destroy(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&payload)
	}
	id := e.recordID(r, payload)

	if _, err := e.store.FindByID(r.Context(), e.desc.Name, id); err != nil {
		if err == store.ErrNotFound {
			rest.NotFound(w, fmt.Sprintf("%s #%s cannot be found", e.desc.Name, id))
			return
		}
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}

	record, err := e.store.Destroy(r.Context(), e.desc.Name, id)
	if err != nil {
		rest.Storage(w, logger.FromContext(r.Context()), err)
		return
	}
	e.emit(core.OperationDelete, record)
	rest.OK(w, record)
}

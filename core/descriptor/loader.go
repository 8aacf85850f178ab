package descriptor

import (
	_ "embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/goccy/go-json"

	"github.com/spinal-tech/spinal/core/logger"
	"github.com/spinal-tech/spinal/core/schema"
)

//go:embed model.schema.json
var modelSchema string

// modelSchemaID must match the $id inside model.schema.json
const modelSchemaID = "https://spinal-tech.github.io/schemas/model.json"

// NewValidator returns a validator preloaded with the model descriptor schema.
func NewValidator() (*schema.Validator, error) {
	return schema.NewValidator([]string{modelSchema}, nil)
}

// LoadDir recursively loads every .json model descriptor under dir in fsys,
// validates it against the descriptor schema and registers it with the
// registry. Model loading happens before route loading; the binder relies on
// a fully populated registry.
//
// A malformed descriptor is a configuration error and aborts loading; unlike
// route units, models have no non-fatal skip semantics.
func LoadDir(fsys fs.FS, dir string, v *schema.Validator, reg *Registry) ([]*Descriptor, error) {
	rlog := logger.Default()
	var loaded []*Descriptor
	err := fs.WalkDir(fsys, dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("cannot read model file %s: %w", path, err)
		}
		if err := v.ValidateString(string(data), modelSchemaID); err != nil {
			return fmt.Errorf("model file %s: %w", path, err)
		}
		d := &Descriptor{}
		if err := json.Unmarshal(data, d); err != nil {
			return fmt.Errorf("model file %s: %w", path, err)
		}
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("model file %s: %w", path, err)
		}
		rlog.Debugln("model loaded:", d.Name)
		loaded = append(loaded, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loaded, nil
}

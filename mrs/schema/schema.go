// Package schema implements the mrs.Validator interface using JSON Schema
// documents, one per protocol message kind. Schemas are compiled once at
// construction; validation marshals the message and evaluates it against
// the compiled schema for its kind.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ZeMeny/Mars-Sensor/errors"
	"github.com/ZeMeny/Mars-Sensor/mrs"
)

// Validator validates protocol messages against their structural schemas.
type Validator struct {
	schemas map[mrs.MessageKind]*gojsonschema.Schema
}

var _ mrs.Validator = (*Validator)(nil)

// New compiles the protocol schemas and returns a Validator.
func New() (*Validator, error) {
	v := &Validator{schemas: make(map[mrs.MessageKind]*gojsonschema.Schema)}
	for kind, doc := range schemaDocuments {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return nil, errors.WrapFatal(err, "Validator", "New",
				fmt.Sprintf("compile %s schema", kind))
		}
		v.schemas[kind] = compiled
	}
	return v, nil
}

// MustNew is like New but panics on schema compilation failure. Schemas are
// compile-time constants, so failure is a programming error.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks a decoded message against the schema for its kind.
// A nil return means valid; otherwise the error carries every violation.
func (v *Validator) Validate(msg mrs.Message) error {
	if msg == nil {
		return errors.WrapInvalid(errors.ErrValidationFailed, "Validator", "Validate", "nil message")
	}
	compiled, ok := v.schemas[msg.Kind()]
	if !ok {
		return errors.WrapInvalid(errors.ErrUnknownKind, "Validator", "Validate",
			fmt.Sprintf("kind %q", msg.Kind()))
	}

	doc, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "Validator", "Validate", "message marshal")
	}
	result, err := compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return errors.Wrap(err, "Validator", "Validate", "schema evaluation")
	}
	if result.Valid() {
		return nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		reasons = append(reasons, desc.String())
	}
	return errors.WrapInvalid(errors.ErrValidationFailed, "Validator", "Validate",
		strings.Join(reasons, "; "))
}

package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gjs "github.com/google/jsonschema-go/jsonschema"
	sjs "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

// compileSchema turns a descriptor schema into a compiled validator.
// A nil descriptor schema compiles to nil, which validates everything.
func compileSchema(s *gjs.Schema) (*sjs.Schema, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	c := sjs.NewCompiler()
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if err := c.AddResource("mem://schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("mem://schema.json")
}

// validateInstance checks data against a compiled schema. The data is
// round-tripped through JSON so handler maps with concrete value types
// validate the same way wire-decoded arguments do.
func validateInstance(sch *sjs.Schema, data any) error {
	if sch == nil {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}

// offendingField extracts the field a validation failure is about, so the
// error message can name it. Missing required properties name the property
// itself; other violations name the instance location.
func offendingField(err error) string {
	var ve *sjs.ValidationError
	if !errors.As(err, &ve) {
		return ""
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	if req, ok := leaf.ErrorKind.(*kind.Required); ok && len(req.Missing) > 0 {
		loc := append(append([]string{}, leaf.InstanceLocation...), req.Missing[0])
		return strings.Join(loc, ".")
	}
	if len(leaf.InstanceLocation) > 0 {
		return strings.Join(leaf.InstanceLocation, ".")
	}
	return ""
}

// validationMessage renders a one-line message naming the offending field.
func validationMessage(err error) (field, msg string) {
	field = offendingField(err)
	if field == "" {
		return "", err.Error()
	}
	var ve *sjs.ValidationError
	if errors.As(err, &ve) {
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		if _, ok := leaf.ErrorKind.(*kind.Required); ok {
			return field, fmt.Sprintf("missing required argument %q", field)
		}
	}
	return field, fmt.Sprintf("invalid argument %q: %v", field, err)
}

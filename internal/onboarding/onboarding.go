// the onboarding package validates the freelancer onboarding form, one step at a time or as a complete application,
// and builds the payload sent to the abillio freelancers endpoint.
package onboarding

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Step names a section of the onboarding form
type Step string

const (
	StepPersonal Step = "personal"
	StepAddress  Step = "address"
	StepPayment  Step = "payment"
)

// Steps in the order they are completed
var Steps = []Step{StepPersonal, StepAddress, StepPayment}

var ErrUnknownStep = errors.New("unknown onboarding step")

// ErrInvalidJSON is returned when the submitted document can't be parsed
var ErrInvalidJSON = errors.New("document is not valid JSON")

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBaseURL = "https://abillio-demo.local/schemas/"

// FieldError describes a single failed rule. Field is the slash separated location of the value in the submitted document
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ParseStep returns the Step named by s
func ParseStep(s string) (Step, error) {
	for _, step := range Steps {
		if string(step) == s {
			return step, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStep, s)
}

var compiled = sync.OnceValues(compileSchemas)

// compileSchemas compiles the embedded step schemas. Formats (email, date) are asserted rather than treated as annotations.
func compileSchemas() (map[Step]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	for _, step := range Steps {
		data, err := schemaFiles.ReadFile("schemas/" + string(step) + ".json")
		if err != nil {
			return nil, fmt.Errorf("could not read %s schema: %w", step, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s schema is not valid JSON: %w", step, err)
		}
		if err := c.AddResource(schemaBaseURL+string(step)+".json", doc); err != nil {
			return nil, fmt.Errorf("could not add %s schema: %w", step, err)
		}
	}

	schemas := make(map[Step]*jsonschema.Schema, len(Steps))
	for _, step := range Steps {
		schema, err := c.Compile(schemaBaseURL + string(step) + ".json")
		if err != nil {
			return nil, fmt.Errorf("invalid %s schema: %w", step, err)
		}
		schemas[step] = schema
	}
	return schemas, nil
}

// Validate checks data against the schema for step.
// A nil slice means the document is valid. An error is returned only when the step is unknown or data is not JSON.
func Validate(step Step, data []byte) ([]FieldError, error) {
	schemas, err := compiled()
	if err != nil {
		return nil, err
	}
	schema, ok := schemas[step]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil, nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	fieldErrors := collectFieldErrors(validationErr, message.NewPrinter(language.English), nil)
	sort.SliceStable(fieldErrors, func(i, j int) bool {
		return fieldErrors[i].Field < fieldErrors[j].Field
	})
	return fieldErrors, nil
}

// collectFieldErrors flattens the validation error tree into its leaf causes
func collectFieldErrors(ve *jsonschema.ValidationError, p *message.Printer, out []FieldError) []FieldError {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			out = collectFieldErrors(cause, p, out)
		}
		return out
	}

	location := strings.Join(ve.InstanceLocation, "/")

	// report missing properties against the property rather than the parent object
	if required, ok := ve.ErrorKind.(*kind.Required); ok {
		for _, name := range required.Missing {
			out = append(out, FieldError{
				Field:   joinField(location, name),
				Message: "is required",
			})
		}
		return out
	}

	out = append(out, FieldError{
		Field:   location,
		Message: ve.ErrorKind.LocalizedString(p),
	})
	return out
}

func joinField(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// ValidateApplication validates a complete application of the form {"personal": {...}, "address": {...}, "payment": {...}}.
// Field errors are prefixed with the step name.
func ValidateApplication(data []byte) ([]FieldError, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidJSON
	}
	if !gjson.ParseBytes(data).IsObject() {
		return []FieldError{{Field: "", Message: "application must be a JSON object"}}, nil
	}

	var all []FieldError
	for _, step := range Steps {
		section := gjson.GetBytes(data, string(step))
		if !section.Exists() {
			all = append(all, FieldError{Field: string(step), Message: "is required"})
			continue
		}

		fieldErrors, err := Validate(step, []byte(section.Raw))
		if err != nil {
			return nil, err
		}
		for _, fe := range fieldErrors {
			all = append(all, FieldError{
				Field:   joinField(string(step), fe.Field),
				Message: fe.Message,
			})
		}
	}
	return all, nil
}

// FreelancerPayload builds the create freelancer request from a validated application:
// the personal fields at the top level, with the address and payment sections nested as "address" and "bank_account"
func FreelancerPayload(application []byte) ([]byte, error) {
	personal := gjson.GetBytes(application, string(StepPersonal))
	if !personal.IsObject() {
		return nil, fmt.Errorf("application has no %s section", StepPersonal)
	}

	payload := []byte(personal.Raw)

	// a null birth date is omitted rather than sent upstream
	if bd := gjson.GetBytes(payload, "birth_date"); bd.Exists() && bd.Type == gjson.Null {
		var err error
		payload, err = sjson.DeleteBytes(payload, "birth_date")
		if err != nil {
			return nil, fmt.Errorf("could not build freelancer payload: %w", err)
		}
	}

	nested := []struct {
		step Step
		key  string
	}{
		{StepAddress, "address"},
		{StepPayment, "bank_account"},
	}
	for _, n := range nested {
		section := gjson.GetBytes(application, string(n.step))
		if !section.IsObject() {
			return nil, fmt.Errorf("application has no %s section", n.step)
		}
		var err error
		payload, err = sjson.SetRawBytes(payload, n.key, []byte(section.Raw))
		if err != nil {
			return nil, fmt.Errorf("could not build freelancer payload: %w", err)
		}
	}
	return payload, nil
}

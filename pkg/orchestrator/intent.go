package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Action is one of the closed set of operations an intent may request.
type Action string

const (
	// ActionSearchCompanies requests a company discovery pass.
	ActionSearchCompanies Action = "search_companies"

	// ActionFindContacts requests contact discovery for matched companies.
	ActionFindContacts Action = "find_contacts"

	// ActionCollectNews requests news collection and summarization.
	ActionCollectNews Action = "collect_news"

	// ActionGenerateEmails requests outreach email generation.
	ActionGenerateEmails Action = "generate_emails"

	// ActionScheduleEmails requests a sending cadence schedule.
	ActionScheduleEmails Action = "schedule_emails"

	// ActionUpdatePipeline requests a pipeline BANT assessment.
	ActionUpdatePipeline Action = "update_pipeline"
)

// Actions returns the closed action set in its canonical order.
func Actions() []Action {
	return []Action{
		ActionSearchCompanies,
		ActionFindContacts,
		ActionCollectNews,
		ActionGenerateEmails,
		ActionScheduleEmails,
		ActionUpdatePipeline,
	}
}

// Validate checks if the action is a member of the closed set.
func (a Action) Validate() error {
	switch a {
	case ActionSearchCompanies, ActionFindContacts, ActionCollectNews,
		ActionGenerateEmails, ActionScheduleEmails, ActionUpdatePipeline:
		return nil
	default:
		return fmt.Errorf("invalid action: %s", a)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(a))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (a *Action) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*a = Action(str)
	return a.Validate()
}

// IntentFilters narrows the scope of an intent. All keys are optional and the
// record is closed: the schema rejects anything beyond these five.
type IntentFilters struct {
	Industries  []string `json:"industries,omitempty"`
	Regions     []string `json:"regions,omitempty"`
	CompanySize string   `json:"company_size,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// ToMap returns the canonicalized filters record: only present keys survive.
func (f IntentFilters) ToMap() map[string]any {
	filters := map[string]any{}
	if f.Industries != nil {
		filters["industries"] = f.Industries
	}
	if f.Regions != nil {
		filters["regions"] = f.Regions
	}
	if f.CompanySize != "" {
		filters["company_size"] = f.CompanySize
	}
	if f.Keywords != nil {
		filters["keywords"] = f.Keywords
	}
	if f.Roles != nil {
		filters["roles"] = f.Roles
	}
	return filters
}

// Intent is the schema-validated representation of a sales-operations
// request. Intents are ephemeral: validated, planned, then discarded.
type Intent struct {
	IntentID string        `json:"intent_id"`
	RawText  string        `json:"raw_text"`
	Language string        `json:"language,omitempty"`
	Filters  IntentFilters `json:"filters"`
	Actions  []Action      `json:"actions"`
}

// TaskTypes returns the intent's actions as planner task types, in order.
func (i *Intent) TaskTypes() []string {
	types := make([]string, 0, len(i.Actions))
	for _, action := range i.Actions {
		types = append(types, string(action))
	}
	return types
}

// intentSchemaJSON is the closed Draft-07 schema for candidate intent
// documents. Unknown fields are rejected at the top level and inside filters.
const intentSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "SalesOpsIntent",
  "type": "object",
  "additionalProperties": false,
  "required": ["intent_id", "raw_text", "filters", "actions"],
  "properties": {
    "intent_id": {"type": "string"},
    "raw_text": {"type": "string"},
    "language": {"type": "string"},
    "filters": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "industries": {"type": "array", "items": {"type": "string"}},
        "regions": {"type": "array", "items": {"type": "string"}},
        "company_size": {"type": "string"},
        "keywords": {"type": "array", "items": {"type": "string"}},
        "roles": {"type": "array", "items": {"type": "string"}}
      }
    },
    "actions": {
      "type": "array",
      "items": {
        "type": "string",
        "enum": [
          "search_companies",
          "find_contacts",
          "collect_news",
          "generate_emails",
          "schedule_emails",
          "update_pipeline"
        ]
      }
    }
  }
}`

// FieldError describes a single schema violation.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError reports all schema violations found in a candidate intent
// document. It is surfaced to the caller and never retried.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "Intent JSON does not match schema."
}

// IsValidationError returns the validation error carried by err, if any.
func IsValidationError(err error) (*ValidationError, bool) {
	var e *ValidationError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IntentValidator validates candidate intent documents against the closed
// intent schema. The validator is pure: no I/O, no state beyond the compiled
// schema.
type IntentValidator struct {
	schema  *jsonschema.Schema
	printer *message.Printer
}

// NewIntentValidator compiles the intent schema.
func NewIntentValidator() (*IntentValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(intentSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to decode intent schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("intent.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add intent schema resource: %w", err)
	}

	schema, err := compiler.Compile("intent.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile intent schema: %w", err)
	}

	return &IntentValidator{
		schema:  schema,
		printer: message.NewPrinter(language.English),
	}, nil
}

// ValidateJSON validates a raw candidate document and returns the typed
// intent. On failure it returns a *ValidationError carrying one
// {path, message} record per violation.
func (v *IntentValidator) ValidateJSON(data []byte) (*Intent, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Path: "", Message: err.Error()}}}
	}
	return v.Validate(doc)
}

// Validate validates a decoded candidate document and returns the typed intent.
func (v *IntentValidator) Validate(doc any) (*Intent, error) {
	if err := v.schema.Validate(doc); err != nil {
		var schemaErr *jsonschema.ValidationError
		if errors.As(err, &schemaErr) {
			return nil, &ValidationError{Errors: v.collectFieldErrors(schemaErr)}
		}
		return nil, &ValidationError{Errors: []FieldError{{Path: "", Message: err.Error()}}}
	}

	intent, err := decodeIntent(doc)
	if err != nil {
		return nil, &ValidationError{Errors: []FieldError{{Path: "", Message: err.Error()}}}
	}

	// The schema admits empty strings; identity fields must be non-empty.
	var fieldErrs []FieldError
	if intent.IntentID == "" {
		fieldErrs = append(fieldErrs, FieldError{Path: "/intent_id", Message: "intent_id must be non-empty"})
	}
	if intent.RawText == "" {
		fieldErrs = append(fieldErrs, FieldError{Path: "/raw_text", Message: "raw_text must be non-empty"})
	}
	if len(fieldErrs) > 0 {
		return nil, &ValidationError{Errors: fieldErrs}
	}

	return intent, nil
}

// collectFieldErrors flattens the validation error tree into per-violation
// field errors.
func (v *IntentValidator) collectFieldErrors(err *jsonschema.ValidationError) []FieldError {
	var fields []FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			fields = append(fields, FieldError{
				Path:    instancePath(e.InstanceLocation),
				Message: e.ErrorKind.LocalizedString(v.printer),
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(err)
	return fields
}

func instancePath(location []string) string {
	if len(location) == 0 {
		return ""
	}
	var b strings.Builder
	for _, segment := range location {
		b.WriteByte('/')
		b.WriteString(segment)
	}
	return b.String()
}

func decodeIntent(doc any) (*Intent, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode intent document: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var intent Intent
	if err := decoder.Decode(&intent); err != nil {
		return nil, fmt.Errorf("failed to decode intent: %w", err)
	}
	return &intent, nil
}

package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/seking31/tms-server/models"
)

// Schema is a compiled validation function for one request payload type.
// T must be a struct whose fields are all *string with json tags.
type Schema[T any] struct {
	Name   string
	strict bool
	fields map[string]struct{}
	v      *Validator
}

// MustCompile prepares a schema for T. Strict schemas reject properties T
// does not declare, the others ignore them. It panics if T is not a struct of
// *string fields.
func MustCompile[T any](v *Validator, name string, strict bool) *Schema[T] {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("validation: schema %s: %T is not a struct", name, zero))
	}

	stringPtr := reflect.TypeOf((*string)(nil))
	fields := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		fld := t.Field(i)
		if fld.Type != stringPtr {
			panic(fmt.Sprintf("validation: schema %s: field %s must be *string", name, fld.Name))
		}
		if key := jsonName(fld); key != "" {
			fields[key] = struct{}{}
		}
	}

	return &Schema[T]{Name: name, strict: strict, fields: fields, v: v}
}

// Decode validates a raw JSON body and returns the typed payload. Every
// violation is reported in the returned *Error, nothing short-circuits.
func (s *Schema[T]) Decode(body []byte) (T, error) {
	var out T

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return out, Problem("data must be object")
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var problems []string
	mistyped := make(map[string]struct{})
	accepted := make(map[string]json.RawMessage, len(raw))
	for _, key := range keys {
		if _, ok := s.fields[key]; !ok {
			if s.strict {
				problems = append(problems, fmt.Sprintf("data must NOT have additional property '%s'", key))
			}
			continue
		}
		value := bytes.TrimSpace(raw[key])
		if len(value) == 0 || value[0] != '"' {
			problems = append(problems, fmt.Sprintf("data/%s must be string", key))
			mistyped[key] = struct{}{}
			continue
		}
		accepted[key] = value
	}

	clean, err := json.Marshal(accepted)
	if err != nil {
		return out, fmt.Errorf("schema %s: re-encoding payload: %w", s.Name, err)
	}
	if err := json.Unmarshal(clean, &out); err != nil {
		return out, fmt.Errorf("schema %s: decoding payload: %w", s.Name, err)
	}

	fieldProblems, err := s.v.check(&out, mistyped)
	if err != nil {
		return out, err
	}
	problems = append(problems, fieldProblems...)

	if len(problems) > 0 {
		return out, &Error{Problems: problems}
	}
	return out, nil
}

// Schemas holds the compiled payload schemas of every write endpoint.
type Schemas struct {
	AddProject    *Schema[models.AddProjectRequest]
	UpdateProject *Schema[models.UpdateProjectRequest]
	AddTask       *Schema[models.AddTaskRequest]
	UpdateTask    *Schema[models.UpdateTaskRequest]
}

func NewSchemas(v *Validator) *Schemas {
	return &Schemas{
		AddProject:    MustCompile[models.AddProjectRequest](v, "AddProject", false),
		UpdateProject: MustCompile[models.UpdateProjectRequest](v, "UpdateProject", true),
		AddTask:       MustCompile[models.AddTaskRequest](v, "AddTask", true),
		UpdateTask:    MustCompile[models.UpdateTaskRequest](v, "UpdateTask", true),
	}
}

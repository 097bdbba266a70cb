package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// SchemaType represents JSON Schema types.
type SchemaType string

const (
	SchemaTypeString  SchemaType = "string"
	SchemaTypeNumber  SchemaType = "number"
	SchemaTypeInteger SchemaType = "integer"
	SchemaTypeBoolean SchemaType = "boolean"
	SchemaTypeObject  SchemaType = "object"
	SchemaTypeArray   SchemaType = "array"
)

// JSONSchema is the subset of JSON Schema used to describe capability
// arguments.
type JSONSchema struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Type        SchemaType `json:"type,omitempty"`

	// Object properties
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`

	// Array items
	Items *JSONSchema `json:"items,omitempty"`

	// String constraints
	MinLength *int `json:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty"`

	// Numeric constraints
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	Default any `json:"default,omitempty"`
}

// NewObjectSchema creates a new object schema.
func NewObjectSchema() *JSONSchema {
	return &JSONSchema{
		Type:       SchemaTypeObject,
		Properties: make(map[string]*JSONSchema),
	}
}

// NewStringSchema creates a new string schema.
func NewStringSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeString}
}

// NewIntegerSchema creates a new integer schema.
func NewIntegerSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeInteger}
}

// NewNumberSchema creates a new number schema.
func NewNumberSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeNumber}
}

// NewBooleanSchema creates a new boolean schema.
func NewBooleanSchema() *JSONSchema {
	return &JSONSchema{Type: SchemaTypeBoolean}
}

// AddProperty adds a property to an object schema.
func (s *JSONSchema) AddProperty(name string, prop *JSONSchema) *JSONSchema {
	if s.Properties == nil {
		s.Properties = make(map[string]*JSONSchema)
	}
	s.Properties[name] = prop
	return s
}

// AddRequired adds required field names.
func (s *JSONSchema) AddRequired(names ...string) *JSONSchema {
	s.Required = append(s.Required, names...)
	return s
}

// WithDescription sets the description.
func (s *JSONSchema) WithDescription(desc string) *JSONSchema {
	s.Description = desc
	return s
}

// WithDefault sets the default value.
func (s *JSONSchema) WithDefault(v any) *JSONSchema {
	s.Default = v
	return s
}

// WithMinLength sets the minimum string length.
func (s *JSONSchema) WithMinLength(n int) *JSONSchema {
	s.MinLength = &n
	return s
}

// WithMinimum sets the minimum numeric value.
func (s *JSONSchema) WithMinimum(v float64) *JSONSchema {
	s.Minimum = &v
	return s
}

// Closed forbids properties that are not declared.
func (s *JSONSchema) Closed() *JSONSchema {
	f := false
	s.AdditionalProperties = &f
	return s
}

// ToJSON serializes the schema to JSON.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// Validate checks a raw JSON document against the schema. An empty document
// is treated as an empty object.
func (s *JSONSchema) Validate(raw json.RawMessage) error {
	if s == nil {
		return nil
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = json.RawMessage("{}")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	return s.validateValue("", doc)
}

func (s *JSONSchema) validateValue(path string, v any) error {
	label := path
	if label == "" {
		label = "arguments"
	}

	switch s.Type {
	case SchemaTypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s must be an object", label)
		}
		for _, name := range s.Required {
			if _, present := obj[name]; !present {
				return fmt.Errorf("%s is required", joinPath(path, name))
			}
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			prop, declared := s.Properties[k]
			if !declared {
				if s.AdditionalProperties != nil && !*s.AdditionalProperties {
					return fmt.Errorf("%s is not allowed", joinPath(path, k))
				}
				continue
			}
			if err := prop.validateValue(joinPath(path, k), obj[k]); err != nil {
				return err
			}
		}
	case SchemaTypeArray:
		arr, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s must be an array", label)
		}
		if s.Items != nil {
			for i, item := range arr {
				if err := s.Items.validateValue(fmt.Sprintf("%s[%d]", label, i), item); err != nil {
					return err
				}
			}
		}
	case SchemaTypeString:
		str, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", label)
		}
		n := utf8.RuneCountInString(str)
		if s.MinLength != nil && n < *s.MinLength {
			return fmt.Errorf("%s must be at least %d characters", label, *s.MinLength)
		}
		if s.MaxLength != nil && n > *s.MaxLength {
			return fmt.Errorf("%s must be at most %d characters", label, *s.MaxLength)
		}
	case SchemaTypeInteger, SchemaTypeNumber:
		num, ok := v.(float64)
		if !ok {
			return fmt.Errorf("%s must be a %s", label, s.Type)
		}
		if s.Type == SchemaTypeInteger && num != math.Trunc(num) {
			return fmt.Errorf("%s must be an integer", label)
		}
		if s.Minimum != nil && num < *s.Minimum {
			return fmt.Errorf("%s must be >= %v", label, *s.Minimum)
		}
		if s.Maximum != nil && num > *s.Maximum {
			return fmt.Errorf("%s must be <= %v", label, *s.Maximum)
		}
	case SchemaTypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s must be a boolean", label)
		}
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

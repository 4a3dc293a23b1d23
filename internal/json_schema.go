package internal

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/xcodebn/zoun"
)

const draft202012 = "https://json-schema.org/draft/2020-12/schema"

// BuildJSONSchema describes the editable shape of a model as a JSON Schema document.
// Hidden and transient fields are omitted; relationships are expressed through target identifiers.
func BuildJSONSchema(entry *zoun.ModelEntry, registry zoun.ModelRegistry) (*jsonschema.Schema, error) {
	if entry == nil {
		return nil, fmt.Errorf("model entry is required")
	}

	schema := &jsonschema.Schema{
		Schema:     draft202012,
		Title:      entry.Name,
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(entry.Fields)),
	}

	for _, field := range entry.Fields {
		if !field.IsVisible() {
			continue
		}
		prop, err := fieldSchema(field, registry)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		schema.Properties[field.Name] = prop

		if field.HasConstraint(zoun.ConstraintNotNull) || field.HasConstraint(zoun.ConstraintNotBlank) ||
			field.HasConstraint(zoun.ConstraintNotEmpty) {
			schema.Required = append(schema.Required, field.Name)
		}
	}
	return schema, nil
}

// MarshalJSONSchema renders the schema of a model as indented JSON.
func MarshalJSONSchema(entry *zoun.ModelEntry, registry zoun.ModelRegistry) ([]byte, error) {
	schema, err := BuildJSONSchema(entry, registry)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(schema, "", "  ")
}

func fieldSchema(field zoun.FieldDescriptor, registry zoun.ModelRegistry) (*jsonschema.Schema, error) {
	prop := &jsonschema.Schema{
		Title:    field.DisplayLabel(),
		ReadOnly: field.IsIdentifier || field.IsReadOnly,
	}

	switch field.Kind {
	case zoun.KindString:
		prop.Type = "string"
	case zoun.KindInteger, zoun.KindLong:
		prop.Type = "integer"
	case zoun.KindDouble, zoun.KindFloat:
		prop.Type = "number"
	case zoun.KindBoolean:
		prop.Type = "boolean"
	case zoun.KindEnum:
		prop.Type = "string"
		for _, v := range enumValues(indirectType(field.DeclaredType)) {
			prop.Enum = append(prop.Enum, v)
		}
	case zoun.KindDate:
		prop.Type = "string"
		prop.Format = "date"
	case zoun.KindTimestamp:
		prop.Type = "string"
		prop.Format = "date-time"
	case zoun.KindBinary:
		prop.Type = "string"
		prop.ContentEncoding = "base64"
	case zoun.KindManyToOne, zoun.KindOneToOne:
		prop.Type = identifierSchemaType(field.Relationship, registry)
		prop.Description = "Identifier of the related " + field.Relationship.TargetModel
	case zoun.KindOneToMany, zoun.KindManyToMany:
		prop.Type = "array"
		prop.Items = &jsonschema.Schema{Type: identifierSchemaType(field.Relationship, registry)}
		prop.Description = "Identifiers of the related " + field.Relationship.TargetModel + " records"
		prop.ReadOnly = true
	}

	if err := applyConstraints(prop, field); err != nil {
		return nil, err
	}
	return prop, nil
}

func identifierSchemaType(rel *zoun.RelationshipDescriptor, registry zoun.ModelRegistry) string {
	if registry == nil || rel == nil {
		return "string"
	}
	target, ok := registry.Get(rel.TargetModel)
	if !ok || target.IDType == nil {
		return "string"
	}
	switch target.IDType {
	case intType, int32Type, int64Type:
		return "integer"
	}
	return "string"
}

func applyConstraints(prop *jsonschema.Schema, field zoun.FieldDescriptor) error {
	for _, c := range field.Constraints {
		switch c.Kind {
		case zoun.ConstraintNotBlank:
			prop.MinLength = intPtr(1)
			prop.Pattern = `\S`
		case zoun.ConstraintNotEmpty:
			if prop.Type == "array" {
				prop.MinItems = intPtr(1)
			} else {
				prop.MinLength = intPtr(1)
			}
		case zoun.ConstraintSize:
			minimum, maximum := &prop.MinLength, &prop.MaxLength
			if prop.Type == "array" {
				minimum, maximum = &prop.MinItems, &prop.MaxItems
			}
			if raw := c.Param("min"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("invalid size min %q: %w", raw, err)
				}
				*minimum = intPtr(n)
			}
			if raw := c.Param("max"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil {
					return fmt.Errorf("invalid size max %q: %w", raw, err)
				}
				*maximum = intPtr(n)
			}
		case zoun.ConstraintMin, zoun.ConstraintMax:
			v, err := strconv.ParseFloat(c.Param("value"), 64)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", c.Kind, c.Param("value"), err)
			}
			exclusive := c.Param("inclusive") == "false"
			switch {
			case c.Kind == zoun.ConstraintMin && exclusive:
				prop.ExclusiveMinimum = &v
			case c.Kind == zoun.ConstraintMin:
				prop.Minimum = &v
			case exclusive:
				prop.ExclusiveMaximum = &v
			default:
				prop.Maximum = &v
			}
		case zoun.ConstraintEmail:
			prop.Format = "email"
		case zoun.ConstraintPattern:
			prop.Pattern = c.Param("regexp")
		case zoun.ConstraintPositive:
			prop.ExclusiveMinimum = floatPtr(0)
		case zoun.ConstraintPositiveOrZero:
			prop.Minimum = floatPtr(0)
		case zoun.ConstraintNegative:
			prop.ExclusiveMaximum = floatPtr(0)
		case zoun.ConstraintNegativeOrZero:
			prop.Maximum = floatPtr(0)
		}
	}
	return nil
}

func intPtr(n int) *int {
	return &n
}

func floatPtr(f float64) *float64 {
	return &f
}

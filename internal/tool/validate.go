package tool

import (
	"errors"
	"fmt"
)

// validateArgs checks model-supplied arguments against a descriptor's
// input schema. The model is untrusted input: unknown fields are
// rejected rather than silently ignored, except the protocol-level
// confirmation flag which is accepted everywhere.
func validateArgs(schema map[string]any, args map[string]any) error {
	if schema == nil {
		schema = map[string]any{}
	}

	required, err := requiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, field := range required {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for key, value := range args {
		if key == ConfirmFlagKey {
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("argument %q must be a boolean", ConfirmFlagKey)
			}
			continue
		}
		propertySchema, ok := properties[key]
		if !ok {
			return fmt.Errorf("unknown argument %q", key)
		}
		if err := validateArgType(key, propertySchema, value); err != nil {
			return err
		}
	}
	return nil
}

func validateArgType(key string, propertySchema, value any) error {
	propertyMap, ok := propertySchema.(map[string]any)
	if !ok {
		return fmt.Errorf("schema for argument %q is not an object", key)
	}
	typeName, ok := propertyMap["type"].(string)
	if !ok {
		return nil
	}
	if !matchesType(typeName, value) {
		return fmt.Errorf("argument %q must be %s", key, typeName)
	}
	return nil
}

func matchesType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		return isNumber(value)
	case "integer":
		// JSON decoding yields float64; accept whole floats.
		switch n := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return n == float64(int64(n))
		default:
			return false
		}
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	default:
		return true
	}
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

func requiredFields(raw any) ([]string, error) {
	switch value := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return value, nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			field, ok := item.(string)
			if !ok {
				return nil, errors.New(`input schema "required" entries must be strings`)
			}
			out = append(out, field)
		}
		return out, nil
	default:
		return nil, errors.New(`input schema "required" must be an array`)
	}
}

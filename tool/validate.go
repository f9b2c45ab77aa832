package tool

import (
	"fmt"
	"slices"
	"strings"
)

// ValidateArguments checks raw arguments against the descriptor's declared
// parameters and returns the coerced argument set with defaults applied.
//
// Unknown keys are rejected before anything else so a caller typo is never
// mistaken for a missing argument. Explicit nulls count as absent.
func ValidateArguments(desc ToolDescriptor, raw map[string]any) (Arguments, error) {
	unknown := make([]string, 0)
	for key := range raw {
		if _, ok := desc.Param(key); !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		err := Errorf(KindInvalidArgument,
			"Unknown argument(s) %s for tool '%s'; accepted: %s",
			quoteAll(unknown), desc.Name, strings.Join(desc.ParamNames(), ", "))
		return nil, withDetails(err, map[string]any{"arguments": unknown})
	}

	out := make(Arguments, len(desc.Params))
	for _, param := range desc.Params {
		value, present := raw[param.Name]
		if present && value == nil {
			present = false
		}
		if !present {
			if param.HasDefault() {
				// Defaults are type-checked at registration.
				out[param.Name], _ = Coerce(param.Type, param.Default)
				continue
			}
			if param.Required {
				err := Errorf(KindMissingArgument,
					"Missing required argument '%s' for tool '%s'", param.Name, desc.Name)
				return nil, withDetails(err, map[string]any{"argument": param.Name})
			}
			continue
		}

		coerced, ok := Coerce(param.Type, value)
		if !ok {
			err := Errorf(KindTypeMismatch,
				"Argument '%s' for tool '%s' must be of type %s, got %s",
				param.Name, desc.Name, param.Type, describeValueType(value))
			return nil, withDetails(err, map[string]any{
				"argument": param.Name,
				"expected": param.Type,
				"actual":   describeValueType(value),
			})
		}
		out[param.Name] = coerced
	}
	return out, nil
}

// validateDescriptor checks a descriptor before registration.
func validateDescriptor(desc ToolDescriptor) error {
	if strings.TrimSpace(desc.Name) == "" {
		return fmt.Errorf("tool: descriptor name is required")
	}
	if desc.Handler == nil {
		return fmt.Errorf("tool: descriptor %q has no handler", desc.Name)
	}
	seen := make(map[string]struct{}, len(desc.Params))
	for _, param := range desc.Params {
		if strings.TrimSpace(param.Name) == "" {
			return fmt.Errorf("tool: descriptor %q has a parameter without name", desc.Name)
		}
		if _, dup := seen[param.Name]; dup {
			return fmt.Errorf("tool: descriptor %q declares parameter %q twice", desc.Name, param.Name)
		}
		seen[param.Name] = struct{}{}
		if !isValidType(param.Type) {
			return fmt.Errorf("tool: descriptor %q parameter %q has unsupported type %q", desc.Name, param.Name, param.Type)
		}
		if param.HasDefault() {
			if _, ok := Coerce(param.Type, param.Default); !ok {
				return fmt.Errorf("tool: descriptor %q parameter %q default does not match type %s", desc.Name, param.Name, param.Type)
			}
		}
	}
	return nil
}

func quoteAll(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, "'"+v+"'")
	}
	return strings.Join(quoted, ", ")
}

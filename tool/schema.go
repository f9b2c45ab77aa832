package tool

import "encoding/json"

// ToolSchema is the discovery projection of a descriptor.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Schema projects a descriptor onto its discovery shape.
func Schema(desc ToolDescriptor) ToolSchema {
	return ToolSchema{
		Name:        desc.Name,
		Description: desc.Description,
		InputSchema: InputSchema(desc.Params),
	}
}

// InputSchema renders parameters as a closed JSON Schema object.
func InputSchema(params []Param) map[string]any {
	properties := make(map[string]any, len(params))
	required := make([]string, 0)
	for _, param := range params {
		prop := jsonSchemaType(param.Type)
		if param.Description != "" {
			prop["description"] = param.Description
		}
		if param.HasDefault() {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop
		if param.Required && !param.HasDefault() {
			required = append(required, param.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// RawInputSchema is InputSchema encoded as JSON.
func RawInputSchema(params []Param) (json.RawMessage, error) {
	return json.Marshal(InputSchema(params))
}

func jsonSchemaType(typeName string) map[string]any {
	switch typeName {
	case TypeAny:
		return map[string]any{}
	case TypeObject:
		return map[string]any{"type": "object"}
	case TypeArray:
		return map[string]any{"type": "array"}
	default:
		return map[string]any{"type": typeName}
	}
}

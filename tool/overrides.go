package tool

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	overrideFieldDisplayName = "display_name"
	overrideFieldDescription = "description"
	overrideFieldArgs        = "args"
)

var displayNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Override customizes how one tool is exposed.
type Override struct {
	DisplayName string
	Description string
	Args        map[string]ArgOverride
}

// IsZero reports whether the override changes nothing.
func (o Override) IsZero() bool {
	return o.DisplayName == "" && o.Description == "" && len(o.Args) == 0
}

// ArgOverride customizes one parameter. Nil fields are left unchanged.
type ArgOverride struct {
	Description *string
	Default     any
	Required    *bool
}

// DecodeOverrides validates the raw `tools:` section of a config file.
// Unlike command-line overrides, unknown fields are an error here.
func DecodeOverrides(raw map[string]map[string]any) (map[string]Override, error) {
	out := make(map[string]Override, len(raw))
	for _, id := range sortedKeys(raw) {
		fields := raw[id]
		var override Override
		for _, field := range sortedKeys(fields) {
			value := fields[field]
			switch field {
			case overrideFieldDisplayName, overrideFieldDescription:
				s, ok := value.(string)
				if !ok {
					return nil, fmt.Errorf("Field '%s' for tool '%s' must be a string", field, id)
				}
				if field == overrideFieldDisplayName {
					override.DisplayName = s
				} else {
					override.Description = s
				}
			case overrideFieldArgs:
				args, err := decodeArgDescriptions(id, value)
				if err != nil {
					return nil, err
				}
				override.Args = args
			default:
				return nil, fmt.Errorf("Invalid field '%s' for tool '%s'. Allowed fields: display_name, description, args", field, id)
			}
		}
		if !override.IsZero() {
			out[id] = override
		}
	}
	return out, nil
}

func decodeArgDescriptions(id string, value any) (map[string]ArgOverride, error) {
	if value == nil {
		return nil, nil
	}
	rawArgs, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Field 'args' for tool '%s' must be a mapping of argument name to description", id)
	}
	args := make(map[string]ArgOverride, len(rawArgs))
	for _, name := range sortedKeys(rawArgs) {
		desc, ok := rawArgs[name].(string)
		if !ok {
			return nil, fmt.Errorf("Description for argument '%s' of tool '%s' must be a string", name, id)
		}
		args[name] = ArgOverride{Description: &desc}
	}
	return args, nil
}

// ParseOverrideFlags parses `tool.<ID>.<field>=<value>` command-line
// overrides. Keys of any other shape and non-standard fields are ignored.
// Argument overrides accept `args.<name>`, `args.<name>.description`,
// `args.<name>.default` and `args.<name>.required`; default and required
// values are decoded with ParseScalar.
func ParseOverrideFlags(flags map[string]string) map[string]Override {
	out := make(map[string]Override)
	for _, key := range sortedKeys(flags) {
		value := flags[key]
		parts := strings.Split(key, ".")
		if len(parts) < 3 || parts[0] != "tool" || parts[1] == "" {
			continue
		}
		id := parts[1]
		override := out[id]

		switch parts[2] {
		case overrideFieldDisplayName:
			if len(parts) != 3 {
				continue
			}
			override.DisplayName = value
		case overrideFieldDescription:
			if len(parts) != 3 {
				continue
			}
			override.Description = value
		case overrideFieldArgs:
			if len(parts) < 4 || len(parts) > 5 || parts[3] == "" {
				continue
			}
			arg := override.Args[parts[3]]
			attr := overrideFieldDescription
			if len(parts) == 5 {
				attr = parts[4]
			}
			switch attr {
			case overrideFieldDescription:
				desc := value
				arg.Description = &desc
			case "default":
				arg.Default = ParseScalar(value)
			case "required":
				required, ok := ParseScalar(value).(bool)
				if !ok {
					continue
				}
				arg.Required = &required
			default:
				continue
			}
			if override.Args == nil {
				override.Args = make(map[string]ArgOverride)
			}
			override.Args[parts[3]] = arg
		default:
			continue
		}
		out[id] = override
	}

	for id, override := range out {
		if override.IsZero() {
			delete(out, id)
		}
	}
	return out
}

// ApplyOverrides returns customized copies of descs. When the config file
// supplies any override the command-line overrides are ignored entirely.
// The input descriptors are never modified.
func ApplyOverrides(descs []ToolDescriptor, fileOverrides, flagOverrides map[string]Override) ([]ToolDescriptor, error) {
	active := flagOverrides
	if len(fileOverrides) > 0 {
		active = fileOverrides
	}

	out := cloneDescriptors(descs)
	if len(active) == 0 {
		return out, nil
	}

	index := make(map[string]int, len(out))
	for i, desc := range out {
		index[desc.ID] = i
	}

	for _, id := range sortedKeys(active) {
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("'%s' is not a valid tool name", id)
		}
		if err := applyOverride(&out[i], active[id]); err != nil {
			return nil, err
		}
	}

	owners := make(map[string]string, len(out))
	for _, desc := range out {
		if other, taken := owners[desc.Name]; taken {
			return nil, fmt.Errorf("Display name '%s' for tool '%s' conflicts with another tool ('%s')", desc.Name, desc.ID, other)
		}
		owners[desc.Name] = desc.ID
	}
	return out, nil
}

func applyOverride(desc *ToolDescriptor, override Override) error {
	if name := strings.TrimSpace(override.DisplayName); name != "" {
		if !displayNamePattern.MatchString(name) {
			return fmt.Errorf("Display name '%s' for tool '%s' does not follow the required pattern %s", name, desc.ID, displayNamePattern.String())
		}
		desc.Name = name
	}
	if description := strings.TrimSpace(override.Description); description != "" {
		desc.Description = description
	}

	for _, argName := range sortedKeys(override.Args) {
		idx := slices.IndexFunc(desc.Params, func(p Param) bool { return p.Name == argName })
		if idx < 0 {
			return fmt.Errorf("Argument '%s' does not exist on tool '%s'", argName, desc.ID)
		}
		arg := override.Args[argName]
		param := &desc.Params[idx]
		if arg.Description != nil {
			param.Description = *arg.Description
		}
		if arg.Required != nil {
			param.Required = *arg.Required
		}
		if arg.Default != nil {
			coerced, ok := Coerce(param.Type, arg.Default)
			if !ok {
				return fmt.Errorf("Default for argument '%s' of tool '%s' must be of type %s", argName, desc.ID, param.Type)
			}
			param.Default = coerced
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

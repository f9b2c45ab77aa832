package tool

import (
	"context"
	"slices"
)

// Origin indicates how a tool was declared.
type Origin string

const (
	// OriginStatic tools are declared in code with a hand-written handler.
	OriginStatic Origin = "static"
	// OriginDynamic tools map directly onto a backend API endpoint.
	OriginDynamic Origin = "dynamic"
)

// Handler executes one tool. It receives validated arguments and returns a
// serializable value or an error; it must never return (nil, nil).
type Handler func(ctx context.Context, args Arguments) (any, error)

// Param declares one accepted argument.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// HasDefault reports whether the parameter declares a default value.
func (p Param) HasDefault() bool {
	return p.Default != nil
}

// ToolDescriptor describes one invocable operation.
type ToolDescriptor struct {
	// ID is the stable key used by configuration (for example "SearchIndexTool").
	ID string `json:"id"`
	// Name is the exposed, catalog-unique name (for example "search_index_tool").
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Origin      Origin  `json:"origin,omitempty"`
	MinVersion  string  `json:"min_version,omitempty"`
	MaxVersion  string  `json:"max_version,omitempty"`
	Params      []Param `json:"params,omitempty"`
	Handler     Handler `json:"-"`
}

// Param returns the declared parameter with the given name.
func (d ToolDescriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ParamNames returns parameter names in declaration order.
func (d ToolDescriptor) ParamNames() []string {
	names := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		names = append(names, p.Name)
	}
	return names
}

func cloneDescriptor(in ToolDescriptor) ToolDescriptor {
	out := in
	out.Params = slices.Clone(in.Params)
	return out
}

func cloneDescriptors(in []ToolDescriptor) []ToolDescriptor {
	if in == nil {
		return nil
	}
	out := make([]ToolDescriptor, 0, len(in))
	for _, d := range in {
		out = append(out, cloneDescriptor(d))
	}
	return out
}

// Arguments is a validated argument set. Every declared parameter with a
// default is present after validation.
type Arguments map[string]any

// Has reports whether name was supplied or defaulted.
func (a Arguments) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns a string argument or "".
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument or 0.
func (a Arguments) Int(name string) int64 {
	n, _ := a[name].(int64)
	return n
}

// Float returns a numeric argument or 0.
func (a Arguments) Float(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Bool returns a boolean argument or false.
func (a Arguments) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Object returns an object argument or nil.
func (a Arguments) Object(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}

// Value returns the raw argument value.
func (a Arguments) Value(name string) any {
	return a[name]
}

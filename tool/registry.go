package tool

import (
	"iter"
	"sync"
)

// Catalog is the authoritative, ordered set of tool descriptors keyed by name.
// It is written once at startup and read concurrently afterwards.
type Catalog struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]ToolDescriptor
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byName: make(map[string]ToolDescriptor),
	}
}

// Register adds a descriptor. It fails with DuplicateToolError when the name
// is already registered.
func (c *Catalog) Register(desc ToolDescriptor) error {
	if err := validateDescriptor(desc); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.byName[desc.Name]; exists {
		return Errorf(KindDuplicateTool, "Tool '%s' is already registered", desc.Name)
	}
	c.byName[desc.Name] = cloneDescriptor(desc)
	c.order = append(c.order, desc.Name)
	return nil
}

// RegisterAll registers descriptors in order and stops at the first error.
func (c *Catalog) RegisterAll(descs ...ToolDescriptor) error {
	for _, desc := range descs {
		if err := c.Register(desc); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the descriptor registered under name.
func (c *Catalog) Lookup(name string) (ToolDescriptor, error) {
	c.mu.RLock()
	desc, ok := c.byName[name]
	c.mu.RUnlock()
	if !ok {
		return ToolDescriptor{}, Errorf(KindUnknownTool, "Unknown tool '%s'", name)
	}
	return cloneDescriptor(desc), nil
}

// List yields descriptors accepted by keep in registration order. A nil keep
// accepts everything. Each iteration reads its own consistent snapshot, so
// the sequence can be ranged over repeatedly.
func (c *Catalog) List(keep func(ToolDescriptor) bool) iter.Seq[ToolDescriptor] {
	return func(yield func(ToolDescriptor) bool) {
		for _, desc := range c.snapshot() {
			if keep != nil && !keep(desc) {
				continue
			}
			if !yield(desc) {
				return
			}
		}
	}
}

// Len returns the number of registered descriptors.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func (c *Catalog) snapshot() []ToolDescriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolDescriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, cloneDescriptor(c.byName[name]))
	}
	return out
}

package rest

import (
	"github.com/ajitpratap0/tap-returnless/pkg/errors"
)

// Catalog is the ordered, validated set of stream definitions.
type Catalog struct {
	streams  []*StreamDefinition
	byName   map[string]*StreamDefinition
	children map[string][]*StreamDefinition
}

// NewCatalog validates defs and indexes them. A parent must be listed
// before its children.
func NewCatalog(defs []*StreamDefinition) (*Catalog, error) {
	c := &Catalog{
		streams:  make([]*StreamDefinition, 0, len(defs)),
		byName:   make(map[string]*StreamDefinition, len(defs)),
		children: make(map[string][]*StreamDefinition),
	}

	for _, def := range defs {
		if def == nil {
			continue
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[def.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "duplicate stream %s", def.Name)
		}
		if def.Parent != "" {
			parent, ok := c.byName[def.Parent]
			if !ok {
				return nil, errors.Newf(errors.ErrorTypeConfig, "stream %s: parent %s must be defined before it", def.Name, def.Parent)
			}
			if parent.ChildContext == nil {
				return nil, errors.Newf(errors.ErrorTypeConfig, "stream %s: parent %s does not project a child context", def.Name, def.Parent)
			}
			c.children[def.Parent] = append(c.children[def.Parent], def)
		}
		c.byName[def.Name] = def
		c.streams = append(c.streams, def)
	}

	return c, nil
}

// Streams returns every definition in catalog order
func (c *Catalog) Streams() []*StreamDefinition {
	return append([]*StreamDefinition(nil), c.streams...)
}

// Names returns every stream name in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.streams))
	for i, s := range c.streams {
		names[i] = s.Name
	}
	return names
}

// Stream looks a definition up by name
func (c *Catalog) Stream(name string) (*StreamDefinition, bool) {
	def, ok := c.byName[name]
	return def, ok
}

// Children returns the direct children of a stream in catalog order
func (c *Catalog) Children(name string) []*StreamDefinition {
	return append([]*StreamDefinition(nil), c.children[name]...)
}

// TopLevel returns the parentless streams in catalog order
func (c *Catalog) TopLevel() []*StreamDefinition {
	var out []*StreamDefinition
	for _, s := range c.streams {
		if !s.IsChild() {
			out = append(out, s)
		}
	}
	return out
}

// Selection resolves which streams emit records and which must run. A
// stream runs when it or any descendant is selected; an unselected
// ancestor runs only to drive its children. An empty selection selects
// every stream.
type Selection struct {
	emit map[string]bool
	run  map[string]bool
}

// Select builds a Selection over c. Unknown names are an error.
func (c *Catalog) Select(names []string) (*Selection, error) {
	sel := &Selection{emit: make(map[string]bool), run: make(map[string]bool)}
	if len(names) == 0 {
		for _, s := range c.streams {
			sel.emit[s.Name] = true
			sel.run[s.Name] = true
		}
		return sel, nil
	}

	for _, name := range names {
		def, ok := c.byName[name]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeConfig, "unknown stream %s", name)
		}
		sel.emit[name] = true
		for ok {
			sel.run[def.Name] = true
			def, ok = c.byName[def.Parent]
		}
	}
	return sel, nil
}

// Emits reports whether records of the stream are written
func (s *Selection) Emits(name string) bool {
	return s.emit[name]
}

// Runs reports whether the stream is synced at all
func (s *Selection) Runs(name string) bool {
	return s.run[name]
}

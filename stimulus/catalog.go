// Package stimulus holds the fixed flanker stimulus catalog and the per-trial
// plan generator.
package stimulus

import (
	"fmt"

	"github.com/justapithecus/flanker/types"
)

// Catalog is an immutable, ordered table of stimulus definitions.
type Catalog struct {
	defs []types.StimulusDefinition
	byID map[string]int
}

// defaultDefinitions is the six-entry flanker table: one stimulus per
// category and side.
var defaultDefinitions = []types.StimulusDefinition{
	{ID: "neutr_l", Image: "images/neutr_l.png", Glyph: "--<--", Correct: types.SideLeft, Category: types.CategoryNeutral},
	{ID: "neutr_p", Image: "images/neutr_p.png", Glyph: "-->--", Correct: types.SideRight, Category: types.CategoryNeutral},
	{ID: "zgdn_l", Image: "images/zgdn_l.png", Glyph: "<<<<<", Correct: types.SideLeft, Category: types.CategoryCongruent},
	{ID: "zgdn_p", Image: "images/zgdn_p.png", Glyph: ">>>>>", Correct: types.SideRight, Category: types.CategoryCongruent},
	{ID: "nzgdn_l", Image: "images/nzgdn_l.png", Glyph: ">><>>", Correct: types.SideLeft, Category: types.CategoryIncongruent},
	{ID: "nzgdn_p", Image: "images/nzgdn_p.png", Glyph: "<<><<", Correct: types.SideRight, Category: types.CategoryIncongruent},
}

// DefaultCatalog returns the standard six-stimulus catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultDefinitions)
	if err != nil {
		panic(fmt.Sprintf("stimulus: default catalog invalid: %v", err))
	}
	return c
}

// NewCatalog builds a catalog from defs and validates it.
func NewCatalog(defs []types.StimulusDefinition) (*Catalog, error) {
	c := &Catalog{
		defs: append([]types.StimulusDefinition(nil), defs...),
		byID: make(map[string]int, len(defs)),
	}
	for i, d := range c.defs {
		if _, dup := c.byID[d.ID]; !dup {
			c.byID[d.ID] = i
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Definitions returns an ordered copy of every definition.
func (c *Catalog) Definitions() []types.StimulusDefinition {
	return append([]types.StimulusDefinition(nil), c.defs...)
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// At returns the definition at position i.
func (c *Catalog) At(i int) types.StimulusDefinition {
	return c.defs[i]
}

// Lookup returns the definition with the given id.
func (c *Catalog) Lookup(id string) (types.StimulusDefinition, error) {
	i, ok := c.byID[id]
	if !ok {
		return types.StimulusDefinition{}, &types.ConfigurationError{
			Field: "stimulus",
			Msg:   fmt.Sprintf("unknown stimulus %q", id),
		}
	}
	return c.defs[i], nil
}

// Classify returns the category of the stimulus with the given id.
func (c *Catalog) Classify(id string) (types.Category, error) {
	d, err := c.Lookup(id)
	if err != nil {
		return "", err
	}
	return d.Category, nil
}

// CorrectResponse returns the side the stimulus with the given id calls for.
func (c *Catalog) CorrectResponse(id string) (types.Side, error) {
	d, err := c.Lookup(id)
	if err != nil {
		return "", err
	}
	return d.Correct, nil
}

// Validate checks the catalog invariants:
//   - at least one definition
//   - ids are non-empty and unique
//   - every definition has a known side and category
//   - every image reference belongs to exactly one definition
func (c *Catalog) Validate() error {
	if len(c.defs) == 0 {
		return &types.ConfigurationError{Field: "stimulus", Msg: "catalog is empty"}
	}

	seenID := make(map[string]struct{}, len(c.defs))
	seenImage := make(map[string]string, len(c.defs))
	for i, d := range c.defs {
		if d.ID == "" {
			return &types.ConfigurationError{Field: "stimulus", Msg: fmt.Sprintf("entry %d: id must be non-empty", i)}
		}
		if _, dup := seenID[d.ID]; dup {
			return &types.ConfigurationError{Field: "stimulus", Msg: fmt.Sprintf("duplicate id %q", d.ID)}
		}
		seenID[d.ID] = struct{}{}

		if !d.Correct.Valid() {
			return &types.ConfigurationError{Field: "stimulus", Msg: fmt.Sprintf("%s: unknown side %q", d.ID, d.Correct)}
		}
		if !d.Category.Valid() {
			return &types.ConfigurationError{Field: "stimulus", Msg: fmt.Sprintf("%s: unknown category %q", d.ID, d.Category)}
		}

		if d.Image != "" {
			if owner, dup := seenImage[d.Image]; dup {
				return &types.ConfigurationError{
					Field: "stimulus",
					Msg:   fmt.Sprintf("image %q shared by %s and %s", d.Image, owner, d.ID),
				}
			}
			seenImage[d.Image] = d.ID
		}
	}
	return nil
}

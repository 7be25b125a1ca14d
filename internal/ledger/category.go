// Package ledger is the client-side bookkeeping engine: it resolves category
// chains, computes running balances, filters and orders movements for
// display, and composes transfer intents. Everything here is synchronous and
// free of side effects.
package ledger

import (
	"strings"

	"registri/internal/core"
)

// MaxCategoryDepth is the number of cascade levels: category, subcategory,
// microcategory.
const MaxCategoryDepth = 3

// UncategorizedLabel is shown for movements whose category cannot be resolved.
const UncategorizedLabel = "Senza categoria"

// LabelSeparator joins the names of a category chain.
const LabelSeparator = ": "

// Level tags a node with its position in the cascade.
type Level int

const (
	LevelCategory Level = iota
	LevelSubcategory
	LevelMicrocategory
)

// CategoryNode is one resolved entry of the tree.
type CategoryNode struct {
	core.Category
	Level    Level
	Parent   *CategoryNode
	Children []*CategoryNode
}

// IsLeaf reports whether the node has no children.
func (n *CategoryNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// Selection holds the three cascade slots of the movement form.
type Selection struct {
	Category      string
	Subcategory   string
	Microcategory string
}

// CategoryTree indexes a flat category list once so that parent lookups are
// O(1). Records whose parent is unknown, whose chain is cyclic or deeper than
// MaxCategoryDepth are kept out of the tree and resolve as uncategorized.
type CategoryTree struct {
	source []core.Category
	nodes  map[string]*CategoryNode
	roots  []*CategoryNode
	broken map[string]struct{}
}

// NewCategoryTree builds the index. Insertion order of the source list is
// preserved for roots and for every child list.
func NewCategoryTree(all []core.Category) *CategoryTree {
	t := &CategoryTree{
		source: append([]core.Category(nil), all...),
		nodes:  make(map[string]*CategoryNode, len(all)),
		broken: make(map[string]struct{}),
	}

	byID := make(map[string]core.Category, len(all))
	for _, c := range all {
		if c.ID == "" {
			continue
		}
		if _, dup := byID[c.ID]; dup {
			continue
		}
		byID[c.ID] = c
	}

	// Depth of every record, computed by walking parent pointers with a
	// bounded number of steps.
	level := func(id string) (Level, bool) {
		depth := 0
		cur := byID[id]
		for cur.ParentID != "" {
			depth++
			if depth >= MaxCategoryDepth {
				return 0, false
			}
			p, ok := byID[cur.ParentID]
			if !ok {
				return 0, false
			}
			cur = p
		}
		return Level(depth), true
	}

	seen := make(map[string]struct{}, len(byID))
	for _, c := range all {
		if _, ok := byID[c.ID]; !ok {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		lvl, ok := level(c.ID)
		if !ok {
			t.broken[c.ID] = struct{}{}
			continue
		}
		t.nodes[c.ID] = &CategoryNode{Category: byID[c.ID], Level: lvl}
	}

	// Link pass in source order so child lists keep insertion order.
	linked := make(map[string]struct{}, len(t.nodes))
	for _, c := range all {
		n, ok := t.nodes[c.ID]
		if !ok {
			continue
		}
		if _, done := linked[c.ID]; done {
			continue
		}
		linked[c.ID] = struct{}{}
		if n.ParentID == "" {
			t.roots = append(t.roots, n)
			continue
		}
		p := t.nodes[n.ParentID]
		n.Parent = p
		p.Children = append(p.Children, n)
	}
	return t
}

// Node returns the resolved node for id.
func (t *CategoryTree) Node(id string) (*CategoryNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// BaseCategories returns the root categories in source order.
func (t *CategoryTree) BaseCategories() []core.Category {
	out := make([]core.Category, 0, len(t.roots))
	for _, n := range t.roots {
		out = append(out, n.Category)
	}
	return out
}

// ChildrenOf returns the direct children of parentID in source order.
func (t *CategoryTree) ChildrenOf(parentID string) []core.Category {
	p, ok := t.nodes[parentID]
	if !ok {
		return nil
	}
	out := make([]core.Category, 0, len(p.Children))
	for _, n := range p.Children {
		out = append(out, n.Category)
	}
	return out
}

// ResolveChain returns [category, subcategory?, microcategory?] ending at id.
// The second result is false when id is not a resolvable category.
func (t *CategoryTree) ResolveChain(id string) ([]core.Category, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, false
	}
	chain := make([]core.Category, n.Level+1)
	for cur := n; cur != nil; cur = cur.Parent {
		chain[cur.Level] = cur.Category
	}
	return chain, true
}

// SelectionFor pre-populates the form slots for a stored leaf category.
func (t *CategoryTree) SelectionFor(id string) (Selection, bool) {
	chain, ok := t.ResolveChain(id)
	if !ok {
		return Selection{}, false
	}
	var sel Selection
	sel.Category = chain[0].ID
	if len(chain) > 1 {
		sel.Subcategory = chain[1].ID
	}
	if len(chain) > 2 {
		sel.Microcategory = chain[2].ID
	}
	return sel, true
}

// Label returns the fully-qualified name of id, e.g. "Entrate: Offerte".
func (t *CategoryTree) Label(id string) string {
	chain, ok := t.ResolveChain(id)
	if !ok {
		return UncategorizedLabel
	}
	names := make([]string, len(chain))
	for i, c := range chain {
		names[i] = c.Name
	}
	return strings.Join(names, LabelSeparator)
}

// ValidateSelection checks that the slots form a consistent chain and that
// the effective category is a leaf, forcing drill-down otherwise.
func (t *CategoryTree) ValidateSelection(sel Selection) error {
	eff := EffectiveCategory(sel)
	if eff == "" {
		return core.NewValidationError("category", "select a category")
	}

	slots := []string{sel.Category, sel.Subcategory, sel.Microcategory}
	parent, gap := "", false
	for depth, id := range slots {
		if id == "" {
			gap = true
			continue
		}
		if gap {
			return core.NewValidationError("category", "category %s selected without the level above it", id)
		}
		n, ok := t.nodes[id]
		if !ok {
			return core.NewValidationError("category", "unknown category %s", id)
		}
		if int(n.Level) != depth || n.ParentID != parent {
			return core.NewValidationError("category", "category %s does not belong under %q", id, parent)
		}
		parent = id
	}

	n, ok := t.nodes[eff]
	if !ok {
		return core.NewValidationError("category", "unknown category %s", eff)
	}
	if !n.IsLeaf() {
		return core.NewValidationError("category", "%s has subcategories: pick one", n.Name)
	}
	return nil
}

// EffectiveCategory returns the deepest populated slot.
func EffectiveCategory(sel Selection) string {
	switch {
	case sel.Microcategory != "":
		return sel.Microcategory
	case sel.Subcategory != "":
		return sel.Subcategory
	default:
		return sel.Category
	}
}

// Select sets the slot at level to id and clears every deeper slot.
func (sel Selection) Select(level Level, id string) Selection {
	switch level {
	case LevelCategory:
		return Selection{Category: id}
	case LevelSubcategory:
		return Selection{Category: sel.Category, Subcategory: id}
	default:
		sel.Microcategory = id
		return sel
	}
}

// BaseCategories returns the root records of all in source order.
func BaseCategories(all []core.Category) []core.Category {
	var out []core.Category
	for _, c := range all {
		if c.ParentID == "" {
			out = append(out, c)
		}
	}
	return out
}

// ChildrenOf returns the records of all whose parent is parentID.
func ChildrenOf(all []core.Category, parentID string) []core.Category {
	var out []core.Category
	for _, c := range all {
		if parentID != "" && c.ParentID == parentID {
			out = append(out, c)
		}
	}
	return out
}

// ResolveChainFromLeaf walks parent references upward from leafID.
func ResolveChainFromLeaf(all []core.Category, leafID string) ([]core.Category, bool) {
	return NewCategoryTree(all).ResolveChain(leafID)
}

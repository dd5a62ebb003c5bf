package ordering

import (
	"fmt"

	"github.com/hashicorp-forge/hermes-import/pkg/hierarchy"
)

// Allocate sets OrderKey on every node of the tree. Siblings are ordered by
// hierarchy.SortSiblings. The first root page takes rootAnchor (the next free
// root position of the destination space, or "" for an empty space) and every
// later sibling is appended after the previous one with no upper bound.
// Child groups start from an unbounded first key.
func Allocate(tree *hierarchy.Tree, rootAnchor string) error {
	if rootAnchor != "" {
		if err := ValidateKey(rootAnchor); err != nil {
			return fmt.Errorf("invalid root anchor: %w", err)
		}
	}

	groups := make(map[string][]*hierarchy.Node)
	for _, n := range tree.Ordered() {
		groups[n.ParentID] = append(groups[n.ParentID], n)
	}

	for parentID, siblings := range groups {
		hierarchy.SortSiblings(siblings)

		first := ""
		if parentID == "" {
			first = rootAnchor
		}
		if err := assign(siblings, first); err != nil {
			return fmt.Errorf("failed to allocate positions under %q: %w", parentID, err)
		}
	}
	return nil
}

func assign(siblings []*hierarchy.Node, first string) error {
	prev := ""
	for i, n := range siblings {
		if i == 0 && first != "" {
			n.OrderKey = first
			prev = first
			continue
		}

		key, err := KeyBetween(prev, "")
		if err != nil {
			return err
		}
		n.OrderKey = key
		prev = key
	}
	return nil
}

// Package hierarchy rebuilds the page tree of an export under freshly
// generated identifiers.
//
// After Build returns, every structure refers to pages by their new ID. The
// archive ID survives only on Node.ArchiveID, as a join key for maps built
// from the export (attachment paths, for example).
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp-forge/hermes-import/pkg/docid"
	"github.com/hashicorp-forge/hermes-import/pkg/export"
)

// OrphanPolicy decides what happens to pages that cannot be attached to the
// tree: pages whose parent was filtered out of the export, and pages caught
// in a parent cycle.
type OrphanPolicy string

const (
	// OrphanSkip leaves orphans out of the tree and reports them.
	OrphanSkip OrphanPolicy = "skip"

	// OrphanPromote makes pages with an unresolvable parent root pages.
	// Cycle members are still skipped.
	OrphanPromote OrphanPolicy = "promote"

	// OrphanStrict fails the build when any page is orphaned.
	OrphanStrict OrphanPolicy = "strict"
)

// ParseOrphanPolicy parses a policy name. The empty string selects
// OrphanSkip.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch p := OrphanPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OrphanSkip, nil
	case OrphanSkip, OrphanPromote, OrphanStrict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown orphan policy %q (must be skip, promote or strict)", s)
	}
}

// Options configures Build.
type Options struct {
	// SpaceImport excludes the home page and promotes its children to root.
	// Pages whose parent cannot be resolved also become root pages.
	SpaceImport bool
	HomePageID  string

	OrphanPolicy OrphanPolicy

	// Generator supplies new IDs. Defaults to random IDs.
	Generator docid.Generator
}

// Node is one page of the rebuilt tree.
type Node struct {
	ID     string
	SlugID string

	ArchiveID       string
	ParentArchiveID string

	// ParentID is the new ID of the parent, or "" for root pages.
	ParentID string

	Title       string
	Markup      string
	BodyFormat  export.BodyFormat
	MissingBody bool
	Position    *int

	// AttachmentIDs are archive attachment IDs.
	AttachmentIDs []string

	Level    int
	OrderKey string
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentID == ""
}

// AnomalyKind classifies a page that could not be placed.
type AnomalyKind string

const (
	// AnomalyMissingParent is a page whose parent is not in the export, or a
	// descendant of such a page.
	AnomalyMissingParent AnomalyKind = "missing_parent"

	// AnomalyCycle is a page whose ancestor chain loops.
	AnomalyCycle AnomalyKind = "cycle"
)

// Anomaly describes a page that was skipped or promoted.
type Anomaly struct {
	Kind      AnomalyKind
	ArchiveID string
	Title     string

	// Promoted is set when the page became a root page instead of being
	// skipped.
	Promoted bool
	Detail   string
}

// Tree is the output of Build.
type Tree struct {
	// Nodes holds every placed page keyed by new ID.
	Nodes map[string]*Node

	// IDMap maps archive IDs of placed pages to new IDs.
	IDMap map[string]string

	// Levels holds placed pages by depth; Levels[0] are the root pages.
	// Within a level, siblings appear in sibling order.
	Levels [][]*Node

	Anomalies []Anomaly
}

// Len returns the number of placed pages.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// Ordered returns placed pages in level order.
func (t *Tree) Ordered() []*Node {
	out := make([]*Node, 0, len(t.Nodes))
	for _, level := range t.Levels {
		out = append(out, level...)
	}
	return out
}

// Children returns the placed children of parentID ("" for roots) in sibling
// order.
func (t *Tree) Children(parentID string) []*Node {
	var out []*Node
	for _, level := range t.Levels {
		for _, n := range level {
			if n.ParentID == parentID {
				out = append(out, n)
			}
		}
	}
	return out
}

// Skipped returns the anomalies that were left out of the tree.
func (t *Tree) Skipped() []Anomaly {
	var out []Anomaly
	for _, a := range t.Anomalies {
		if !a.Promoted {
			out = append(out, a)
		}
	}
	return out
}

// OrphanedPagesError is returned by Build under OrphanStrict.
type OrphanedPagesError struct {
	Anomalies []Anomaly
}

func (e *OrphanedPagesError) Error() string {
	titles := make([]string, 0, len(e.Anomalies))
	for _, a := range e.Anomalies {
		titles = append(titles, fmt.Sprintf("%q (%s)", a.Title, a.Kind))
	}
	return fmt.Sprintf("%d orphaned pages: %s", len(e.Anomalies), strings.Join(titles, ", "))
}

// SortSiblings orders nodes by archive position (missing positions last),
// then by case-sensitive title, then by archive ID.
func SortSiblings(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		switch {
		case a.Position != nil && b.Position == nil:
			return true
		case a.Position == nil && b.Position != nil:
			return false
		case a.Position != nil && *a.Position != *b.Position:
			return *a.Position < *b.Position
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ArchiveID < b.ArchiveID
	})
}

package hierarchy

import (
	"fmt"
	"sort"

	"github.com/hashicorp-forge/hermes-import/pkg/docid"
	"github.com/hashicorp-forge/hermes-import/pkg/export"
)

// Build assigns new IDs to pages, resolves parents through the identifier
// map and computes breadth-first levels from the root pages.
func Build(pages map[string]export.Page, opts Options) (*Tree, error) {
	if opts.Generator == nil {
		opts.Generator = docid.NewRandomGenerator()
	}
	if opts.OrphanPolicy == "" {
		opts.OrphanPolicy = OrphanSkip
	}

	archiveIDs := make([]string, 0, len(pages))
	for id := range pages {
		if opts.SpaceImport && id == opts.HomePageID {
			continue
		}
		archiveIDs = append(archiveIDs, id)
	}
	sort.Strings(archiveIDs)

	idMap := make(map[string]string, len(archiveIDs))
	nodes := make(map[string]*Node, len(archiveIDs))
	for _, archiveID := range archiveIDs {
		p := pages[archiveID]
		n := &Node{
			ID:              opts.Generator.NewUUID().String(),
			SlugID:          opts.Generator.NewSlugID(),
			ArchiveID:       archiveID,
			ParentArchiveID: p.ParentID,
			Title:           p.Title,
			Markup:          p.Markup,
			BodyFormat:      p.BodyFormat,
			MissingBody:     p.MissingBody,
			Position:        p.Position,
			AttachmentIDs:   p.AttachmentIDs,
			Level:           -1,
		}
		idMap[archiveID] = n.ID
		nodes[n.ID] = n
	}

	var anomalies []Anomaly
	missingParent := make(map[string]bool)
	for _, archiveID := range archiveIDs {
		n := nodes[idMap[archiveID]]
		parent := n.ParentArchiveID

		switch {
		case parent == "":
		case opts.SpaceImport && parent == opts.HomePageID:
		case idMap[parent] != "":
			n.ParentID = idMap[parent]
		case opts.SpaceImport:
			// Unresolvable parents become root pages in space imports.
		case opts.OrphanPolicy == OrphanPromote:
			anomalies = append(anomalies, Anomaly{
				Kind:      AnomalyMissingParent,
				ArchiveID: archiveID,
				Title:     n.Title,
				Promoted:  true,
				Detail:    fmt.Sprintf("parent %s is not in the export; promoted to root", parent),
			})
		default:
			missingParent[n.ID] = true
		}
	}

	levels := computeLevels(nodes, missingParent)

	for _, archiveID := range archiveIDs {
		n := nodes[idMap[archiveID]]
		if n.Level >= 0 {
			continue
		}
		anomalies = append(anomalies, classify(n, nodes, missingParent))
	}

	if opts.OrphanPolicy == OrphanStrict && len(anomalies) > 0 {
		return nil, &OrphanedPagesError{Anomalies: anomalies}
	}

	for _, a := range anomalies {
		if a.Promoted {
			continue
		}
		delete(nodes, idMap[a.ArchiveID])
		delete(idMap, a.ArchiveID)
	}

	return &Tree{
		Nodes:     nodes,
		IDMap:     idMap,
		Levels:    levels,
		Anomalies: anomalies,
	}, nil
}

// computeLevels runs a breadth-first traversal from the root pages and sets
// Node.Level on every node it reaches.
func computeLevels(nodes map[string]*Node, missingParent map[string]bool) [][]*Node {
	children := make(map[string][]*Node)
	var roots []*Node
	for _, n := range nodes {
		switch {
		case missingParent[n.ID]:
		case n.IsRoot():
			roots = append(roots, n)
		default:
			children[n.ParentID] = append(children[n.ParentID], n)
		}
	}
	for _, group := range children {
		SortSiblings(group)
	}
	SortSiblings(roots)

	var levels [][]*Node
	current := roots
	for depth := 0; len(current) > 0; depth++ {
		var next []*Node
		for _, n := range current {
			n.Level = depth
			next = append(next, children[n.ID]...)
		}
		levels = append(levels, current)
		current = next
	}
	return levels
}

// classify explains why n was never reached from a root page.
func classify(n *Node, nodes map[string]*Node, missingParent map[string]bool) Anomaly {
	a := Anomaly{ArchiveID: n.ArchiveID, Title: n.Title}

	seen := map[string]bool{}
	for cur := n; cur != nil; cur = nodes[cur.ParentID] {
		if missingParent[cur.ID] {
			a.Kind = AnomalyMissingParent
			if cur == n {
				a.Detail = fmt.Sprintf("parent %s is not in the export", n.ParentArchiveID)
			} else {
				a.Detail = fmt.Sprintf("ancestor %q has no parent in the export", cur.Title)
			}
			return a
		}
		if seen[cur.ID] {
			break
		}
		seen[cur.ID] = true
	}

	a.Kind = AnomalyCycle
	a.Detail = "parent chain forms a cycle"
	return a
}

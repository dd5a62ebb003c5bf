package hierarchy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/hermes-import/pkg/export"
)

func intPtr(i int) *int {
	return &i
}

func page(id, title, parent string) export.Page {
	return export.Page{ID: id, Title: title, ParentID: parent, Status: export.StatusCurrent}
}

func pagesOf(pages ...export.Page) map[string]export.Page {
	out := make(map[string]export.Page, len(pages))
	for _, p := range pages {
		out[p.ID] = p
	}
	return out
}

func titles(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Title)
	}
	return out
}

func TestBuild_Chain(t *testing.T) {
	tree, err := Build(pagesOf(
		page("1", "A", ""),
		page("2", "B", "1"),
		page("3", "C", "2"),
	), Options{})
	require.NoError(t, err)

	require.Len(t, tree.Levels, 3)
	assert.Equal(t, []string{"A"}, titles(tree.Levels[0]))
	assert.Equal(t, []string{"B"}, titles(tree.Levels[1]))
	assert.Equal(t, []string{"C"}, titles(tree.Levels[2]))
	assert.Equal(t, []string{"A", "B", "C"}, titles(tree.Ordered()))
	assert.Empty(t, tree.Anomalies)

	a := tree.Nodes[tree.IDMap["1"]]
	b := tree.Nodes[tree.IDMap["2"]]
	c := tree.Nodes[tree.IDMap["3"]]
	assert.True(t, a.IsRoot())
	assert.Equal(t, a.ID, b.ParentID)
	assert.Equal(t, b.ID, c.ParentID)
	assert.Equal(t, 2, c.Level)

	t.Run("every parent resolves to a node one level up", func(t *testing.T) {
		for _, n := range tree.Nodes {
			if n.IsRoot() {
				assert.Equal(t, 0, n.Level)
				continue
			}
			parent, ok := tree.Nodes[n.ParentID]
			require.True(t, ok)
			assert.Equal(t, parent.Level+1, n.Level)
		}
	})

	t.Run("fresh ids per build", func(t *testing.T) {
		again, err := Build(pagesOf(page("1", "A", "")), Options{})
		require.NoError(t, err)
		assert.NotEqual(t, tree.IDMap["1"], again.IDMap["1"])
		assert.NotEmpty(t, again.Nodes[again.IDMap["1"]].SlugID)
	})
}

func TestBuild_SpaceImport(t *testing.T) {
	pages := pagesOf(
		page("10", "Home", ""),
		page("11", "Guides", "10"),
		page("12", "Setup", "11"),
		page("13", "Lost", "99"),
		page("14", "Other root", ""),
	)

	tree, err := Build(pages, Options{SpaceImport: true, HomePageID: "10", OrphanPolicy: OrphanStrict})
	require.NoError(t, err)

	assert.Equal(t, 4, tree.Len(), "home page is excluded")
	assert.NotContains(t, tree.IDMap, "10")
	assert.Equal(t, []string{"Guides", "Lost", "Other root"}, titles(tree.Levels[0]))
	assert.Equal(t, []string{"Setup"}, titles(tree.Levels[1]))
	assert.Empty(t, tree.Anomalies)
}

func TestBuild_Orphans(t *testing.T) {
	pages := pagesOf(
		page("1", "Root", ""),
		page("2", "Orphan", "99"),
		page("3", "Orphan child", "2"),
		page("4", "Loop A", "5"),
		page("5", "Loop B", "4"),
	)

	t.Run("skip", func(t *testing.T) {
		tree, err := Build(pages, Options{OrphanPolicy: OrphanSkip})
		require.NoError(t, err)

		assert.Equal(t, 1, tree.Len())
		assert.Equal(t, []string{"Root"}, titles(tree.Ordered()))
		assert.NotContains(t, tree.IDMap, "2")
		assert.NotContains(t, tree.IDMap, "3")

		require.Len(t, tree.Anomalies, 4)
		kinds := map[string]AnomalyKind{}
		for _, a := range tree.Anomalies {
			kinds[a.ArchiveID] = a.Kind
			assert.False(t, a.Promoted)
		}
		assert.Equal(t, map[string]AnomalyKind{
			"2": AnomalyMissingParent,
			"3": AnomalyMissingParent,
			"4": AnomalyCycle,
			"5": AnomalyCycle,
		}, kinds)
		assert.Len(t, tree.Skipped(), 4)
	})

	t.Run("promote", func(t *testing.T) {
		tree, err := Build(pages, Options{OrphanPolicy: OrphanPromote})
		require.NoError(t, err)

		assert.Equal(t, []string{"Orphan", "Root"}, titles(tree.Levels[0]))
		assert.Equal(t, []string{"Orphan child"}, titles(tree.Levels[1]))
		assert.Len(t, tree.Anomalies, 3)
		assert.Len(t, tree.Skipped(), 2, "cycle members are still skipped")
	})

	t.Run("strict", func(t *testing.T) {
		_, err := Build(pages, Options{OrphanPolicy: OrphanStrict})
		require.Error(t, err)

		var orphaned *OrphanedPagesError
		require.True(t, errors.As(err, &orphaned))
		assert.Len(t, orphaned.Anomalies, 4)
		assert.Contains(t, err.Error(), `"Orphan"`)
	})
}

func TestSortSiblings(t *testing.T) {
	nodes := []*Node{
		{ArchiveID: "1", Title: "Zeta", Position: intPtr(2)},
		{ArchiveID: "2", Title: "Alpha", Position: intPtr(1)},
		{ArchiveID: "3", Title: "Unplaced"},
		{ArchiveID: "4", Title: "beta", Position: intPtr(3)},
		{ArchiveID: "5", Title: "Beta", Position: intPtr(3)},
	}

	SortSiblings(nodes)
	assert.Equal(t, []string{"Alpha", "Zeta", "Beta", "beta", "Unplaced"}, titles(nodes))
}

func TestParseOrphanPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    OrphanPolicy
		wantErr bool
	}{
		{in: "", want: OrphanSkip},
		{in: "skip", want: OrphanSkip},
		{in: "Promote", want: OrphanPromote},
		{in: " strict ", want: OrphanStrict},
		{in: "reparent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrphanPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

package references

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/hermes-import/pkg/markup"
)

func TestResolve_PageRefs(t *testing.T) {
	pages := TitleIndex{
		"Runbooks": {ID: "page-2", SlugID: "slug2"},
		"Self":     {ID: "page-1", SlugID: "slug1"},
	}
	content := `<p><a href="page-ref:Runbooks">the runbooks</a> and ` +
		`<a href="page-ref:Runbooks">again</a> and ` +
		`<a href="page-ref:Missing Page"><strong>gone</strong></a> and ` +
		`<a href="page-ref:Self">me</a></p>`

	res, err := Resolve("page-1", content, pages, nil)
	require.NoError(t, err)

	assert.Equal(t,
		`<p><a href="page:page-2" data-page-id="page-2" data-slug-id="slug2">the runbooks</a> and `+
			`<a href="page:page-2" data-page-id="page-2" data-slug-id="slug2">again</a> and `+
			`gone and `+
			`<a href="page:page-1" data-page-id="page-1" data-slug-id="slug1">me</a></p>`,
		res.HTML)

	assert.Equal(t, []Backlink{{SourcePageID: "page-1", TargetPageID: "page-2"}}, res.Backlinks,
		"backlinks are deduplicated and exclude self references")
	assert.Equal(t, []string{"Missing Page"}, res.UnresolvedPages)
	assert.NotContains(t, res.HTML, markup.PageRefPrefix)
}

func TestResolve_MissingTitleDegradesToText(t *testing.T) {
	res, err := Resolve("p", `<p>See <a href="page-ref:Nowhere">Nowhere</a>.</p>`, TitleIndex{}, nil)
	require.NoError(t, err)

	assert.Equal(t, `<p>See Nowhere.</p>`, res.HTML)
	assert.Empty(t, res.Backlinks)
	assert.NotContains(t, res.HTML, "<a")
}

func TestResolve_AttachmentRefs(t *testing.T) {
	files := map[string]string{
		"diagram.png":      "/export/attachments/11/300/2",
		"docs/runbook.pdf": "/export/attachments/11/301/1",
	}
	content := `<img src="attachment-ref:diagram.png" width="10"/>` +
		`<p><a href="attachment-ref:runbook.pdf">pdf</a></p>` +
		`<p><a href="attachment-ref:unknown.zip">zip</a></p>` +
		`<img src="attachment-ref:unknown.zip"/>`

	res, err := Resolve("p", content, TitleIndex{}, files)
	require.NoError(t, err)

	assert.Contains(t, res.HTML, `<img src="attachment:/export/attachments/11/300/2" width="10"/>`)
	assert.Contains(t, res.HTML, `<a href="attachment:/export/attachments/11/301/1">pdf</a>`)
	assert.Equal(t, 2, strings.Count(res.HTML, markup.AttachmentRefPrefix+"unknown.zip"),
		"unmatched attachments are left for the attachment pipeline")
	assert.Equal(t, []string{"unknown.zip"}, res.UnresolvedAttachments)
}

func TestHasPathSuffix(t *testing.T) {
	tests := []struct {
		s, suffix string
		want      bool
	}{
		{"a/b/c.png", "c.png", true},
		{"c.png", "c.png", true},
		{"a/bc.png", "c.png", false},
		{"a/b/c.png", "b/c.png", true},
		{"c.png", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.s+"|"+tt.suffix, func(t *testing.T) {
			assert.Equal(t, tt.want, hasPathSuffix(tt.s, tt.suffix))
		})
	}
}

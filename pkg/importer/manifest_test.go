package importer

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// archive builds a test export on an in-memory filesystem.
type archive struct {
	space       *testSpace
	pages       []testPage
	attachments []testAttachment
}

type testSpace struct {
	id, name, key, home string
}

type testPage struct {
	id, title, parent string
	position          int
	status            string
	body              string
	format            int
}

type testAttachment struct {
	id, name, container string
	version             int
	data                string
}

func (a *archive) manifest() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<hibernate-generic>\n")

	if s := a.space; s != nil {
		fmt.Fprintf(&b, `<object class="Space"><id name="id">%s</id>`, s.id)
		fmt.Fprintf(&b, `<property name="name"><![CDATA[%s]]></property>`, s.name)
		fmt.Fprintf(&b, `<property name="key"><![CDATA[%s]]></property>`, s.key)
		if s.home != "" {
			fmt.Fprintf(&b, `<property name="homePage" class="Page"><id name="id">%s</id></property>`, s.home)
		}
		b.WriteString("</object>\n")
	}

	for _, p := range a.pages {
		status := p.status
		if status == "" {
			status = "current"
		}
		fmt.Fprintf(&b, `<object class="Page"><id name="id">%s</id>`, p.id)
		fmt.Fprintf(&b, `<property name="title"><![CDATA[%s]]></property>`, p.title)
		fmt.Fprintf(&b, `<property name="contentStatus"><![CDATA[%s]]></property>`, status)
		if p.parent != "" {
			fmt.Fprintf(&b, `<property name="parent" class="Page"><id name="id">%s</id></property>`, p.parent)
		}
		if p.position != 0 {
			fmt.Fprintf(&b, `<property name="position">%d</property>`, p.position)
		}
		b.WriteString("</object>\n")

		if p.body != "" {
			format := p.format
			if format == 0 {
				format = 2
			}
			fmt.Fprintf(&b, `<object class="BodyContent"><id name="id">body-%s</id>`, p.id)
			fmt.Fprintf(&b, `<property name="body"><![CDATA[%s]]></property>`, p.body)
			fmt.Fprintf(&b, `<property name="content" class="Page"><id name="id">%s</id></property>`, p.id)
			fmt.Fprintf(&b, `<property name="bodyType">%d</property>`, format)
			b.WriteString("</object>\n")
		}
	}

	for _, att := range a.attachments {
		fmt.Fprintf(&b, `<object class="Attachment"><id name="id">%s</id>`, att.id)
		fmt.Fprintf(&b, `<property name="title"><![CDATA[%s]]></property>`, att.name)
		fmt.Fprintf(&b, `<property name="containerContent" class="Page"><id name="id">%s</id></property>`, att.container)
		fmt.Fprintf(&b, `<property name="version">%d</property>`, att.version)
		fmt.Fprintf(&b, `<property name="contentStatus"><![CDATA[current]]></property>`)
		b.WriteString("</object>\n")
	}

	b.WriteString("</hibernate-generic>\n")
	return b.String()
}

// write lays the archive out under dir.
func (a *archive) write(t *testing.T, fs afero.Fs, dir string) {
	t.Helper()
	writeFile(t, fs, filepath.Join(dir, "entities.xml"), a.manifest())
	for _, att := range a.attachments {
		if att.data == "" {
			continue
		}
		p := filepath.Join(dir, "attachments", att.container, att.id, fmt.Sprint(att.version))
		writeFile(t, fs, p, att.data)
	}
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func pageLink(title, text string) string {
	return fmt.Sprintf(`<ac:link><ri:page ri:content-title="%s" /><ac:link-body>%s</ac:link-body></ac:link>`, title, text)
}

func attachmentImage(name string) string {
	return fmt.Sprintf(`<ac:image ac:width="200"><ri:attachment ri:filename="%s" /></ac:image>`, name)
}

// Package attachments uploads the files referenced by imported pages and
// rewrites their references to durable URLs.
package attachments

import (
	"context"
	"io"
	"strings"
)

// Store persists attachment files.
type Store interface {
	// Put stores the content under key and returns the URL it is served at.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// sanitizeFilename removes characters that are problematic in object keys.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, " ", "-")
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"\"", "",
		"<", "-",
		">", "-",
		"|", "-",
		"#", "-",
		"%", "-",
	)
	return replacer.Replace(name)
}

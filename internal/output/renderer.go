// Package output renders a model.Session as styled text, plain text, JSON,
// or markdown — the advisor-side equivalent of the teacher's internal/output
// package, kept to the same four-format, one-interface shape and swapped
// from DDL-plan rendering to index-recommendation rendering.
package output

import (
	"io"

	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/pgdriver"
)

// Renderer defines the output interface.
type Renderer interface {
	RenderSession(sess *model.Session)
	RenderConnection(cfg pgdriver.ConnectionConfig, version pgdriver.ServerVersion, hypopgInstalled bool)
}

// NewRenderer creates a renderer for the given format.
func NewRenderer(format string, w io.Writer) Renderer {
	switch format {
	case "json":
		return &JSONRenderer{w: w}
	case "markdown":
		return &MarkdownRenderer{w: w}
	case "plain":
		return &PlainRenderer{w: w}
	default:
		return &TextRenderer{w: w}
	}
}

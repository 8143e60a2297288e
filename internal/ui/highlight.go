package ui

import (
	"io"

	"github.com/alecthomas/chroma/v2/quick"
)

// HighlightPython writes source to w with terminal syntax colors.
func HighlightPython(w io.Writer, source string) error {
	return quick.Highlight(w, source, "python", "terminal256", "monokai")
}

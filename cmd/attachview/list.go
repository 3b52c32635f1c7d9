package main

import (
	"fmt"

	"github.com/emx-mail/mimecore/pkgs/attach"
)

// handleList prints the attachment tree the way the index menu shows it: one
// row per visible part with its number, type and size.
func handleList(ctx *attach.AttachCtx) error {
	for v := 0; v < ctx.Vcount(); v++ {
		ap := ctx.Current(v)
		b := ap.Body

		marks := " "
		if b.Deleted {
			marks = "D"
		}

		name := b.Description
		if name == "" {
			name = b.Filename
		}
		if name == "" {
			name = "<no description>"
		}

		fmt.Printf("%3d %s %s%-40s [%s, %s]\n",
			v+1, marks, ap.Tree, name, b.ContentType(), prettySize(b.Length))
	}
	return nil
}

func prettySize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fK", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/(1024*1024))
	}
}

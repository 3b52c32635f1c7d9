package mimeops

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/mailcap"
)

// printDirect reports whether the type can go straight to print_command
// without decoding tricks.
func printDirect(b *attach.Body) bool {
	t := strings.ToLower(b.ContentType())
	return t == "text/plain" || t == "application/postscript"
}

// printOne prints a single attachment: through its mailcap print= command
// when one exists, through print_command for plain text and PostScript, and
// via decode-to-temp for everything else the builtin handlers understand.
func (r *Runner) printOne(src io.ReaderAt, b *attach.Body) error {
	mimeType := b.ContentType()

	if entry, err := r.mc.Lookup(mcBody(b, b.Filename), mimeType, mailcap.LookupPrint); err == nil {
		fname := mailcap.SanitizeFilename(b.Filename, src != nil)
		newfile := mailcap.ExpandFilename(entry.NameTemplate, fname)
		if err := r.saveAttachment(src, b, newfile, SaveNew); err != nil {
			return err
		}
		defer os.Remove(newfile)
		if b.IsFlowed() {
			if err := attach.UnstuffFlowedFile(newfile); err != nil {
				return err
			}
		}

		cmd, piped := r.mc.ExpandCommand(mcBody(b, newfile), newfile, mimeType, entry.PrintCommand)
		r.term.Suspend()
		defer r.term.Resume()

		if piped {
			in, err := os.Open(newfile)
			if err != nil {
				return fmt.Errorf("print %s: %w", mimeType, err)
			}
			defer in.Close()
			status, err := r.filter.Run(cmd, in, nil)
			if err != nil {
				r.msg.Error("Can't create filter")
				return fmt.Errorf("print %s: %w", mimeType, err)
			}
			r.waitKey(status != 0)
		} else {
			status, err := r.filter.RunInteractive(cmd)
			if err != nil {
				r.logger.Debug("print command failed", "command", cmd, "error", err)
			}
			r.waitKey(status != 0)
		}
		return nil
	}

	printCmd := r.cfg.Str("print_command")

	if printDirect(b) {
		var buf bytes.Buffer
		if err := r.pipeBody(&buf, src, b); err != nil {
			return err
		}
		r.term.Suspend()
		defer r.term.Resume()
		status, err := r.filter.Run(printCmd, &buf, nil)
		if err != nil {
			r.msg.Error("Can't create filter")
			return fmt.Errorf("print %s: %w", mimeType, err)
		}
		r.waitKey(status != 0)
		return nil
	}

	if b.CanDecode() {
		newfile := mktemp("")
		if err := r.saveAttachment(src, b, newfile, SaveNew); err != nil {
			return err
		}
		defer os.Remove(newfile)

		in, err := os.Open(newfile)
		if err != nil {
			return fmt.Errorf("print %s: %w", mimeType, err)
		}
		defer in.Close()
		r.term.Suspend()
		defer r.term.Resume()
		status, err := r.filter.Run(printCmd, in, nil)
		if err != nil {
			r.msg.Error("Can't create filter")
			return fmt.Errorf("print %s: %w", mimeType, err)
		}
		r.waitKey(status != 0)
		return nil
	}

	r.msg.Error(fmt.Sprintf("I don't know how to print %s attachments", mimeType))
	return fmt.Errorf("print: unsupported type %s", mimeType)
}

// canPrintAll verifies the whole selection is printable before a joint
// print run starts.
func (r *Runner) canPrintAll(ctx *attach.AttachCtx, v int, tagPrefix bool) bool {
	ok := true
	forSelected(ctx, v, tagPrefix, func(ap *attach.AttachPtr) error {
		b := ap.Body
		if _, err := r.mc.Lookup(mcBody(b, b.Filename), b.ContentType(), mailcap.LookupPrint); err == nil {
			return nil
		}
		if printDirect(b) || b.CanDecode() {
			return nil
		}
		r.msg.Error(fmt.Sprintf("I don't know how to print %s attachments", b.ContentType()))
		ok = false
		return fmt.Errorf("unprintable")
	})
	return ok
}

// PrintList prints the current attachment, or every tagged one, after a quad
// confirmation. With attach_split unset everything printable without mailcap
// is piped through a single print_command invocation.
func (r *Runner) PrintList(ctx *attach.AttachCtx, v int, tagPrefix bool) error {
	prompt := "Print attachment?"
	if tagPrefix {
		prompt = "Print tagged attachments?"
	}
	if yes, ok := r.queryQuad(prompt, "print"); !ok || !yes {
		return nil
	}

	if r.cfg.Bool("attach_split") {
		return forSelected(ctx, v, tagPrefix, func(ap *attach.AttachPtr) error {
			return r.printOne(ap.Stream, ap.Body)
		})
	}

	if !r.canPrintAll(ctx, v, tagPrefix) {
		return fmt.Errorf("print: selection contains unprintable parts")
	}

	sep := r.cfg.Str("attach_sep")
	var buf bytes.Buffer
	err := forSelected(ctx, v, tagPrefix, func(ap *attach.AttachPtr) error {
		b := ap.Body
		if _, lerr := r.mc.Lookup(mcBody(b, b.Filename), b.ContentType(), mailcap.LookupPrint); lerr == nil {
			// Mailcap print entries run on their own even in joint mode.
			return r.printOne(ap.Stream, b)
		}
		if printDirect(b) {
			if perr := r.pipeBody(&buf, ap.Stream, b); perr != nil {
				return perr
			}
		} else {
			newfile := mktemp("")
			if serr := r.saveAttachment(ap.Stream, b, newfile, SaveNew); serr != nil {
				return serr
			}
			defer os.Remove(newfile)
			in, oerr := os.Open(newfile)
			if oerr != nil {
				return fmt.Errorf("print: %w", oerr)
			}
			defer in.Close()
			if _, cerr := io.Copy(&buf, in); cerr != nil {
				return cerr
			}
		}
		if sep != "" {
			buf.WriteString(sep)
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.term.Suspend()
	defer r.term.Resume()
	status, ferr := r.filter.Run(r.cfg.Str("print_command"), &buf, nil)
	if ferr != nil {
		r.msg.Error("Can't create filter")
		return fmt.Errorf("print: %w", ferr)
	}
	r.waitKey(status != 0)
	return nil
}

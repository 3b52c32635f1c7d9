package mimeops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/email"
	"github.com/emx-mail/mimecore/pkgs/mailcap"
)

// ViewMode selects how an attachment should be presented.
type ViewMode int

const (
	// ViewRegular consults mailcap only for types the builtin handlers
	// can't render.
	ViewRegular ViewMode = iota
	// ViewMailcap forces a mailcap viewer; no entry is an error.
	ViewMailcap
	// ViewPager looks for an autoview (copiousoutput) entry.
	ViewPager
	// ViewAsText shows the raw decoded content in the pager.
	ViewAsText
)

// needsMailcap reports whether the builtin handlers can't render the type
// and an external viewer is required.
func needsMailcap(b *attach.Body) bool {
	switch strings.ToLower(b.Type) {
	case "text":
		if strings.EqualFold(b.Subtype, "plain") {
			return false
		}
	case "application":
		if b.IsSMIMEEnvelope() || strings.HasPrefix(strings.ToLower(b.Subtype), "pgp") {
			return false
		}
	case "multipart", "message":
		return false
	}
	return true
}

// View shows one attachment: through a mailcap viewer, through the pager, or
// both when the entry is copiousoutput. Returns the opcode the pager handed
// back so display loops can chain.
func (r *Runner) View(src io.ReaderAt, b *attach.Body, mode ViewMode, e *email.Email, ctx *attach.AttachCtx) (Op, error) {
	restore := r.exportColumns()
	defer restore()

	mimeType := b.ContentType()
	useMailcap := mode == ViewMailcap ||
		(mode == ViewRegular && needsMailcap(b)) ||
		mode == ViewPager

	var entry *mailcap.Entry
	tmpfile := ""
	hasTempfile := false
	defer func() {
		// The exported body stays around for the external viewer; the
		// timeout hook cleans it up unless the entry asked to keep it.
		if hasTempfile && (entry == nil || !entry.XNeomuttKeep) {
			r.temps.Add(tmpfile)
		}
	}()

	if useMailcap {
		lm := mailcap.LookupView
		if mode == ViewPager {
			lm = mailcap.LookupAutoview
		}
		found, err := r.mc.Lookup(mcBody(b, b.Filename), mimeType, lm)
		if err != nil {
			var notFound *mailcap.NotFoundError
			if (mode == ViewRegular || mode == ViewPager) &&
				(errors.As(err, &notFound) || errors.Is(err, mailcap.ErrNoPath)) {
				r.msg.Error("No matching mailcap entry found. Viewing as text.")
				mode = ViewAsText
				useMailcap = false
			} else {
				return OpNull, err
			}
		} else {
			entry = found
		}
	}

	usePipe := false
	usePager := true
	cmd := ""
	if useMailcap {
		if entry.Command == "" {
			return OpNull, fmt.Errorf("MIME type not defined: can't view attachment")
		}

		// Slashes survive in send mode where the filename is already a
		// private temp path.
		fname := mailcap.SanitizeFilename(b.Filename, src != nil)
		tmpfile = mailcap.ExpandFilename(entry.NameTemplate, fname)

		if err := r.saveAttachment(src, b, tmpfile, SaveNew); err != nil {
			return OpNull, err
		}
		hasTempfile = true
		if b.IsFlowed() {
			if err := attach.UnstuffFlowedFile(tmpfile); err != nil {
				return OpNull, err
			}
		}

		if strings.EqualFold(mimeType, "text/html") && ctx != nil && len(ctx.Idx) > 0 {
			if anc := attach.Ancestor(ctx.Idx[0].Body, b, "related"); anc != nil {
				maps := r.cidSaveAttachments(src, anc.Parts)
				if err := CidToFilename(tmpfile, maps); err != nil {
					r.logger.Debug("cid substitution failed", "error", err)
				}
			}
		}

		cmd, usePipe = r.mc.ExpandCommand(mcBody(b, tmpfile), tmpfile, mimeType, entry.Command)
		usePager = entry.CopiousOutput
	}

	pagerfile := ""
	if usePager {
		if src != nil && !useMailcap && b.Filename != "" {
			pagerfile = mktemp(b.Filename)
		} else {
			pagerfile = mktemp("")
		}
	}
	unlinkPagerfile := false
	defer func() {
		if unlinkPagerfile {
			os.Remove(pagerfile)
		}
	}()

	if useMailcap {
		if !usePager {
			r.term.Suspend()
			defer r.term.Resume()
		}
		waitKey := r.cfg.Bool("wait_key")

		switch {
		case usePager || usePipe:
			var stdin io.Reader
			var stdout io.Writer
			if usePipe {
				in, err := os.Open(tmpfile)
				if err != nil {
					return OpNull, fmt.Errorf("view %s: %w", mimeType, err)
				}
				defer in.Close()
				stdin = in
			}
			if usePager {
				out, err := os.OpenFile(pagerfile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
				if err != nil {
					return OpNull, fmt.Errorf("view %s: %w", mimeType, err)
				}
				defer out.Close()
				stdout = out
				unlinkPagerfile = true
			}

			status, err := r.filter.Run(cmd, stdin, stdout)
			if err != nil {
				r.msg.Error("Can't create filter")
				return OpNull, fmt.Errorf("view %s: %w", mimeType, err)
			}
			if !usePager && r.prompt != nil && (status != 0 || (entry.NeedsTerminal && waitKey)) {
				r.prompt.AnyKey("")
			}
		default:
			status, err := r.filter.RunInteractive(cmd)
			if err != nil {
				r.logger.Debug("viewer failed", "command", cmd, "error", err)
			}
			if r.prompt != nil && (status != 0 || (entry.NeedsTerminal && waitKey)) {
				r.prompt.AnyKey("")
			}
		}
	} else {
		out, err := os.OpenFile(pagerfile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err != nil {
			return OpNull, fmt.Errorf("view %s: %w", mimeType, err)
		}
		unlinkPagerfile = true

		if mode == ViewAsText && src == nil {
			// Compose mode: the backing file already holds decoded bytes.
			in, ferr := os.Open(b.Filename)
			if ferr != nil {
				out.Close()
				return OpNull, fmt.Errorf("view %s: %w", mimeType, ferr)
			}
			_, err = io.Copy(out, in)
			in.Close()
		} else {
			// Decode with charset conversion for the builtin pager.
			err = b.DecodeTo(out, src, r.cs, r.cfg.Str("charset"))
		}
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return OpNull, err
		}
		if b.IsFlowed() {
			if err := attach.UnstuffFlowedFile(pagerfile); err != nil {
				return OpNull, err
			}
		}
	}

	if !usePager {
		return OpNull, nil
	}

	banner := b.Description
	if banner == "" {
		if useMailcap {
			banner = fmt.Sprintf("---Command: %-30.30s Attachment: %s", cmd, mimeType)
		} else if b.Filename != "" {
			banner = fmt.Sprintf("---Attachment: %s: %s", b.Filename, mimeType)
		} else {
			banner = fmt.Sprintf("---Attachment: %s", mimeType)
		}
	}

	flags := PagerAttachment
	if b.IsMessage() {
		flags |= PagerMessage
	}
	if useMailcap && entry.XNeomuttNoWrap {
		flags |= PagerNoWrap
	}
	if b.NoWrap {
		flags |= PagerNoWrap
	}

	if r.pager == nil {
		return OpNull, nil
	}
	op, err := r.pager.Show(PagerView{
		Banner: banner,
		Path:   pagerfile,
		Flags:  flags,
		Body:   b,
		Email:  e,
	})
	if err != nil {
		return OpNull, err
	}
	return op, nil
}

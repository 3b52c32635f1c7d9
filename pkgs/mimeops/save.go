package mimeops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/email"
)

// SaveOpt says how to treat an existing destination file.
type SaveOpt int

const (
	SaveNew SaveOpt = iota
	SaveAppend
	SaveOverwrite
)

// hasAMessage reports whether the part carries a full sub-message that must
// be saved into a mailbox rather than a flat file. Base64 and
// quoted-printable message parts were never parsed, so they save as files.
func hasAMessage(b *attach.Body) bool {
	return b.Nested != nil && b.IsMessage() &&
		b.Encoding != attach.EncBase64 && b.Encoding != attach.EncQuotedPrintable
}

// openSave opens the destination with the negotiated intent. SaveNew creates
// exclusively so a file racing into the path between the overwrite check and
// the open is never clobbered.
func openSave(path string, opt SaveOpt) (*os.File, error) {
	flags := os.O_CREATE | os.O_WRONLY
	switch opt {
	case SaveAppend:
		flags |= os.O_APPEND
	case SaveOverwrite:
		flags |= os.O_TRUNC
	default:
		flags |= os.O_EXCL
	}
	return os.OpenFile(path, flags, 0o600)
}

// saveAttachment writes one attachment to path. With a source stream the
// transfer encoding is undone; message parts are appended to path as a
// mailbox instead. Without a stream (send mode) the backing file is copied
// verbatim.
func (r *Runner) saveAttachment(src io.ReaderAt, b *attach.Body, path string, opt SaveOpt) error {
	if src != nil {
		if hasAMessage(b) {
			// The embedded message starts at the part's content offset; the
			// part's own MIME headers stay behind.
			raw := io.NewSectionReader(src, b.Offset, b.Length)
			return email.AppendToMbox(path, b.Nested, raw)
		}

		out, err := openSave(path, opt)
		if err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
		if err := b.DecodeTo(out, src, nil, ""); err != nil {
			out.Close()
			return err
		}
		if err := out.Sync(); err != nil {
			out.Close()
			return fmt.Errorf("save %s: %w", path, err)
		}
		return out.Close()
	}

	if b.Filename == "" {
		return fmt.Errorf("save: attachment has no backing file")
	}
	in, err := os.Open(b.Filename)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	defer in.Close()
	out, err := openSave(path, opt)
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	return out.Close()
}

// saveFlowedHelper unstuffs format=flowed text on the way out. The decode
// lands in a scratch file first because unstuffing needs the decoded bytes;
// the scratch is then copied to the destination with the caller's append or
// overwrite intent applied.
func (r *Runner) saveFlowedHelper(src io.ReaderAt, b *attach.Body, path string, opt SaveOpt) error {
	if !b.IsFlowed() {
		return r.saveAttachment(src, b, path, opt)
	}

	scratch := mktemp("")
	if err := r.saveAttachment(src, b, scratch, SaveNew); err != nil {
		return err
	}
	defer os.Remove(scratch)
	if err := attach.UnstuffFlowedFile(scratch); err != nil {
		return err
	}
	fake := &attach.Body{Filename: scratch}
	return r.saveAttachment(nil, fake, path, opt)
}

// prependSavedir makes a relative destination land under attach_save_dir.
func (r *Runner) prependSavedir(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	dir := r.cfg.Str("attach_save_dir")
	if dir == "" {
		dir = "."
	}
	return filepath.Join(expandPath(dir), name)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// defaultSaveName derives a destination name for a message part without a
// filename hint, from the sender's mailbox name.
func defaultSaveName(b *attach.Body) string {
	if b.Nested != nil && b.Nested.Envelope != nil && len(b.Nested.Envelope.From) > 0 {
		addr := b.Nested.Envelope.From[0].Email
		if at := strings.IndexByte(addr, '@'); at > 0 {
			return addr[:at]
		}
		if addr != "" {
			return addr
		}
	}
	return "attachment"
}

// checkOverwrite negotiates with the user when the destination exists.
// Returns the final filename and 0 to proceed, 1 to re-prompt, -1 to abort.
func (r *Runner) checkOverwrite(attname, path string, opt *SaveOpt, directory *string) (string, int) {
	fname := path
	st, err := os.Stat(fname)
	if err != nil {
		return fname, 0
	}

	if st.IsDir() {
		under := false
		if directory != nil && *directory != "" {
			under = true
		} else if r.prompt != nil {
			switch r.prompt.MultiChoice("File is a directory, save under it: (y)es, (n)o, (a)ll?", "yna") {
			case 3:
				if directory != nil {
					*directory = fname
				}
				under = true
			case 1:
				under = true
			case 2:
				return fname, 1
			default:
				return fname, -1
			}
		}
		if !under {
			return fname, -1
		}
		base := filepath.Base(attname)
		if base == "." || base == "/" || base == "" {
			base = "attachment"
		}
		if r.prompt != nil && (directory == nil || *directory == "") {
			answer, ok := r.prompt.Input("File under directory: ", base)
			if !ok || answer == "" {
				return fname, -1
			}
			base = answer
		}
		fname = filepath.Join(path, base)
		if _, err := os.Stat(fname); err != nil {
			return fname, 0
		}
	}

	if *opt == SaveNew {
		if r.prompt == nil {
			return fname, -1
		}
		switch r.prompt.MultiChoice(fname+" - File exists, (o)verwrite, (a)ppend, or (c)ancel?", "oac") {
		case 1:
			*opt = SaveOverwrite
		case 2:
			*opt = SaveAppend
		case 3:
			return fname, 1
		default:
			return fname, -1
		}
	}
	return fname, 0
}

// querySaveAttachment prompts for a destination and saves, re-prompting on
// refusals. directory remembers a "save under this directory for all"
// answer across a tagged bulk save.
func (r *Runner) querySaveAttachment(src io.ReaderAt, b *attach.Body, directory *string) error {
	name := ""
	switch {
	case b.Filename != "":
		if directory != nil && *directory != "" {
			name = filepath.Join(*directory, filepath.Base(b.Filename))
		} else {
			name = b.Filename
		}
	case hasAMessage(b):
		name = defaultSaveName(b)
	}
	name = r.prependSavedir(name)

	for {
		answer, ok := r.prompt.Input("Save to file: ", name)
		if !ok || answer == "" {
			return fmt.Errorf("save aborted")
		}
		name = expandPath(answer)

		opt := SaveNew
		fname, rc := r.checkOverwrite(b.Filename, name, &opt, directory)
		if rc == -1 {
			return fmt.Errorf("save aborted")
		}
		if rc == 1 {
			continue
		}

		if err := r.saveFlowedHelper(src, b, fname, opt); err != nil {
			r.msg.Error(err.Error())
			continue
		}
		r.msg.Message("Attachment saved")
		return nil
	}
}

// saveWithoutPrompting saves straight into attach_save_dir using the body's
// own filename.
func (r *Runner) saveWithoutPrompting(src io.ReaderAt, b *attach.Body) error {
	name := b.Filename
	if name == "" && hasAMessage(b) {
		name = defaultSaveName(b)
	}
	name = expandPath(r.prependSavedir(filepath.Base(name)))

	opt := SaveNew
	fname := name
	if !hasAMessage(b) {
		var rc int
		fname, rc = r.checkOverwrite(b.Filename, name, &opt, nil)
		if rc != 0 {
			return fmt.Errorf("save aborted")
		}
	}
	return r.saveFlowedHelper(src, b, fname, opt)
}

// SaveList saves the current attachment, or every tagged one. With
// attach_split unset all selected parts are appended to a single file with
// attach_sep between them.
func (r *Runner) SaveList(ctx *attach.AttachCtx, v int, tagPrefix bool) error {
	split := r.cfg.Bool("attach_split")
	sep := r.cfg.Str("attach_sep")
	noPrompt := r.cfg.Bool("attach_save_without_prompting")

	var directory string
	var joint string
	saved := 0

	cur := ctx.Current(v)
	for i := 0; !tagPrefix || i < len(ctx.Idx); i++ {
		ap := cur
		if tagPrefix {
			ap = ctx.Idx[i]
		}
		if ap == nil {
			break
		}
		if !tagPrefix || ap.Body.Tagged {
			src := ap.Stream
			b := ap.Body

			if split {
				if noPrompt {
					if err := r.saveWithoutPrompting(src, b); err == nil {
						saved++
					}
				} else if err := r.querySaveAttachment(src, b, &directory); err != nil {
					return err
				}
			} else {
				opt := SaveNew
				if joint == "" {
					name := r.prependSavedir(filepath.Base(b.Filename))
					answer, ok := r.prompt.Input("Save to file: ", name)
					if !ok || answer == "" {
						return fmt.Errorf("save aborted")
					}
					fname, rc := r.checkOverwrite(b.Filename, expandPath(answer), &opt, nil)
					if rc != 0 {
						return fmt.Errorf("save aborted")
					}
					joint = fname
				} else {
					opt = SaveAppend
				}
				if err := r.saveFlowedHelper(src, b, joint, opt); err != nil {
					return err
				}
				saved++
				if sep != "" {
					if f, err := os.OpenFile(joint, os.O_WRONLY|os.O_APPEND, 0o600); err == nil {
						io.WriteString(f, sep)
						f.Close()
					}
				}
			}
		}
		if !tagPrefix {
			break
		}
	}

	if saved > 0 && (!split || noPrompt) {
		if saved == 1 {
			r.msg.Message("Attachment saved")
		} else {
			r.msg.Message(fmt.Sprintf("%d attachments saved", saved))
		}
	}
	return nil
}

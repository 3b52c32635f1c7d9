package mimeops

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/emx-mail/mimecore/pkgs/attach"
)

// pipeBody decodes one attachment into w, unstuffing flowed text on the way.
// Text parts are converted to the terminal charset; a viewer on the other
// end of the pipe expects readable bytes.
func (r *Runner) pipeBody(w io.Writer, src io.ReaderAt, b *attach.Body) error {
	if src == nil {
		if b.Filename == "" {
			return fmt.Errorf("pipe: attachment has no backing file")
		}
		in, err := os.Open(b.Filename)
		if err != nil {
			return fmt.Errorf("pipe: %w", err)
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	}

	if b.IsFlowed() {
		scratch := mktemp("")
		out, err := os.OpenFile(scratch, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("pipe: %w", err)
		}
		defer os.Remove(scratch)
		if err := b.DecodeTo(out, src, r.cs, r.cfg.Str("charset")); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		if err := attach.UnstuffFlowedFile(scratch); err != nil {
			return err
		}
		in, err := os.Open(scratch)
		if err != nil {
			return fmt.Errorf("pipe: %w", err)
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	}

	return b.DecodeTo(w, src, r.cs, r.cfg.Str("charset"))
}

// filterBody runs the user's command over a compose-mode attachment and, on
// success, replaces the backing file with the command's output, re-deriving
// the transfer encoding from the new content.
func (r *Runner) filterBody(command string, b *attach.Body) error {
	if r.prompt != nil {
		ok, answered := r.prompt.YesNo(
			fmt.Sprintf("WARNING! You are about to overwrite %s, continue?", b.Filename), false)
		if !answered || !ok {
			return nil
		}
	}

	in, err := os.Open(b.Filename)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	defer in.Close()

	scratch := mktemp("")
	out, err := os.OpenFile(scratch, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	status, err := r.filter.Run(command, in, out)
	out.Close()
	if err != nil || status != 0 {
		os.Remove(scratch)
		if err != nil {
			r.msg.Error("Can't create filter")
			return fmt.Errorf("filter: %w", err)
		}
		return fmt.Errorf("filter: command exited %d", status)
	}

	if err := os.Remove(b.Filename); err != nil && !os.IsNotExist(err) {
		os.Remove(scratch)
		return fmt.Errorf("filter: %w", err)
	}
	if err := os.Rename(scratch, b.Filename); err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	if err := updateEncoding(b); err != nil {
		return err
	}
	r.msg.Message("Attachment filtered")
	return nil
}

// updateEncoding re-derives an attachment's length and transfer encoding
// after its backing file changed.
func updateEncoding(b *attach.Body) error {
	data, err := os.ReadFile(b.Filename)
	if err != nil {
		return fmt.Errorf("update encoding: %w", err)
	}
	b.Offset = 0
	b.Length = int64(len(data))

	has8bit := false
	binary := false
	lineLen := 0
	for i := 0; i < len(data); i++ {
		c := data[i]
		switch {
		case c == 0:
			binary = true
		case c == '\n':
			lineLen = 0
			continue
		case c == '\r':
			if i+1 >= len(data) || data[i+1] != '\n' {
				binary = true
			}
			continue
		case c >= 0x80:
			has8bit = true
		}
		lineLen++
		if lineLen > 990 {
			binary = true
		}
	}

	switch {
	case binary:
		b.Encoding = attach.EncBase64
	case has8bit:
		b.Encoding = attach.Enc8Bit
	default:
		b.Encoding = attach.Enc7Bit
	}
	return nil
}

// PipeList pipes the current attachment, or every tagged one, into a user
// command. With filter set (compose mode only) the command output replaces
// each attachment. With attach_split unset all parts stream into a single
// command invocation, separated by attach_sep.
func (r *Runner) PipeList(ctx *attach.AttachCtx, v int, tagPrefix, filter bool) error {
	cur := ctx.Current(v)
	if cur != nil && cur.Stream != nil {
		// Received parts have no backing file to replace.
		filter = false
	}

	prompt := "Pipe to: "
	if filter {
		prompt = "Filter through: "
	}
	command, ok := r.prompt.Input(prompt, "")
	if !ok || command == "" {
		return nil
	}

	split := r.cfg.Bool("attach_split")
	sep := r.cfg.Str("attach_sep")

	if !filter && !split {
		var buf bytes.Buffer
		err := forSelected(ctx, v, tagPrefix, func(ap *attach.AttachPtr) error {
			if err := r.pipeBody(&buf, ap.Stream, ap.Body); err != nil {
				return err
			}
			if sep != "" {
				buf.WriteString(sep)
			}
			return nil
		})
		if err != nil {
			// Do not hand a partial buffer to the command.
			return err
		}

		r.term.Suspend()
		defer r.term.Resume()
		status, err := r.filter.Run(command, &buf, nil)
		if err != nil {
			r.msg.Error("Can't create filter")
			return fmt.Errorf("pipe: %w", err)
		}
		r.waitKey(status != 0)
		return nil
	}

	return forSelected(ctx, v, tagPrefix, func(ap *attach.AttachPtr) error {
		if filter {
			return r.filterBody(command, ap.Body)
		}
		var buf bytes.Buffer
		if err := r.pipeBody(&buf, ap.Stream, ap.Body); err != nil {
			return err
		}
		r.term.Suspend()
		defer r.term.Resume()
		status, err := r.filter.Run(command, &buf, nil)
		if err != nil {
			r.msg.Error("Can't create filter")
			return fmt.Errorf("pipe: %w", err)
		}
		if status != 0 {
			r.msg.Error("Filter failed")
		}
		return nil
	})
}

// forSelected applies fn to the current row, or to every tagged row when
// tagPrefix is set.
func forSelected(ctx *attach.AttachCtx, v int, tagPrefix bool, fn func(*attach.AttachPtr) error) error {
	if !tagPrefix {
		if cur := ctx.Current(v); cur != nil {
			return fn(cur)
		}
		return nil
	}
	for _, ap := range ctx.Idx {
		if ap.Body.Tagged {
			if err := fn(ap); err != nil {
				return err
			}
		}
	}
	return nil
}

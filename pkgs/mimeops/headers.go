package mimeops

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/attach"
	"github.com/emx-mail/mimecore/pkgs/email"
)

// MailboxState is the slice of mailbox bookkeeping the protected-header
// rewrite touches: the subject index and the needs-sync flag.
type MailboxState struct {
	Subjects *email.SubjectIndex
	Changed  bool
}

// protectedEnvelope finds the header copy carried inside a crypto container.
// Signed messages keep it on the signed part, encrypted ones on the envelope
// itself once decryption attached it.
func protectedEnvelope(e *email.Email, b *attach.Body) *email.Envelope {
	if e.Security&email.SecSign != 0 && b.IsType("multipart", "signed") && b.Parts != nil {
		return b.Parts.MimeHeaders
	}
	if e.Security&email.SMIMEEncrypt == email.SMIMEEncrypt && b.IsSMIMEEnvelope() {
		return b.MimeHeaders
	}
	if e.Security&email.PGPEncrypt == email.PGPEncrypt {
		return b.MimeHeaders
	}
	return nil
}

// ProcessProtectedHeaders replaces the outer subject with the protected one
// when the crypto layer vouches for it, reindexing the message and marking
// the mailbox dirty when the replacement should persist.
func (r *Runner) ProcessProtectedHeaders(m *MailboxState, e *email.Email, b *attach.Body) {
	if e == nil || b == nil {
		return
	}
	if !r.cfg.Bool("crypt_protected_headers_read") && !r.cfg.Bool("autocrypt") {
		return
	}
	// A signature that failed to verify vouches for nothing.
	if e.Security&email.SecSign != 0 && e.Security&email.SecGoodSign == 0 {
		return
	}

	prot := protectedEnvelope(e, b)
	if prot == nil {
		return
	}

	if r.cfg.Bool("crypt_protected_headers_read") && prot.Subject != "" {
		outer := ""
		if e.Envelope != nil {
			outer = e.Envelope.Subject
		}
		if prot.Subject != outer {
			if m != nil && m.Subjects != nil {
				m.Subjects.Remove(e)
			}
			e.SetSubject(prot.Subject, r.cfg.Regex("reply_regex"))
			if m != nil && m.Subjects != nil {
				m.Subjects.Add(e)
			}
			if r.cfg.Bool("crypt_protected_headers_save") {
				e.Dirty = true
				if m != nil {
					m.Changed = true
				}
			}
		}
	}

	if r.cfg.Bool("autocrypt") && r.acrypt != nil && len(prot.AutocryptGossip) > 0 {
		if err := r.acrypt.ProcessGossip(e, prot); err != nil {
			r.logger.Debug("autocrypt gossip", "error", err)
		}
	}
}

// weededHeaders are the header prefixes the pager hides when weed is set.
var weededHeaders = []string{
	"received",
	"content-",
	"mime-version",
	"status",
	"x-status",
	"message-id",
	"return-path",
	"lines",
	"sender",
	"references",
}

func weedHeader(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range weededHeaders {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// copyWeededHeaders writes the raw header block to w, dropping weeded fields
// together with their continuation lines.
func copyWeededHeaders(w io.Writer, headers io.Reader, weed bool) error {
	sc := bufio.NewScanner(headers)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	skipping := false
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			break
		}
		cont := line[0] == ' ' || line[0] == '\t'
		if cont {
			if skipping {
				continue
			}
		} else {
			skipping = weed && weedHeader(line)
			if skipping {
				continue
			}
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return sc.Err()
}

// EmailToFile renders a whole message into path for the pager: headers first,
// weeded per the weed option, then the decoded top-level content. When
// display_filter is set the finished file is run through it in place.
func (r *Runner) EmailToFile(src io.ReaderAt, e *email.Email, root *attach.Body, path string) error {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		r.msg.Error("Could not copy message")
		return fmt.Errorf("copy message: %w", err)
	}

	headers := io.NewSectionReader(src, root.HeaderOffset, root.Offset-root.HeaderOffset)
	err = copyWeededHeaders(out, headers, r.cfg.Bool("weed"))
	if err == nil {
		_, err = io.WriteString(out, "\n")
	}
	if err == nil {
		err = root.DecodeTo(out, src, r.cs, r.cfg.Str("charset"))
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		r.msg.Error("Could not copy message")
		return fmt.Errorf("copy message: %w", err)
	}

	if filter := r.cfg.Str("display_filter"); filter != "" {
		if err := r.applyDisplayFilter(filter, path); err != nil {
			os.Remove(path)
			r.msg.Error("Could not copy message")
			return err
		}
	}
	return nil
}

// applyDisplayFilter pipes path through the filter command and replaces the
// file with the command's output.
func (r *Runner) applyDisplayFilter(command, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("display filter: %w", err)
	}
	defer in.Close()

	scratch := mktemp("")
	out, err := os.OpenFile(scratch, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("display filter: %w", err)
	}

	status, err := r.filter.Run(command, in, out)
	out.Close()
	if err != nil || status != 0 {
		os.Remove(scratch)
		if err != nil {
			r.msg.Error("Can't create filter")
			return fmt.Errorf("display filter: %w", err)
		}
		return fmt.Errorf("display filter: command exited %d", status)
	}
	return os.Rename(scratch, path)
}

package email

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/emersion/go-mbox"
)

// AppendToMbox appends one raw message to an mbox file, generating the From_
// separator line from the envelope. Status and X-Status header lines are
// dropped so the saved copy appears unread; Content-Length is recomputed by
// the reader side, so none is written.
func AppendToMbox(path string, e *Email, raw io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open mbox %s: %w", path, err)
	}
	defer f.Close()

	if err := ensureTrailingNewline(f); err != nil {
		return fmt.Errorf("append to mbox %s: %w", path, err)
	}

	from := "MAILER-DAEMON"
	date := time.Now()
	if e != nil && e.Envelope != nil {
		if len(e.Envelope.From) > 0 && e.Envelope.From[0].Email != "" {
			from = e.Envelope.From[0].Email
		}
		if !e.Envelope.Date.IsZero() {
			date = e.Envelope.Date
		}
	}

	w := mbox.NewWriter(f)
	mw, err := w.CreateMessage(from, date)
	if err != nil {
		return fmt.Errorf("append to mbox %s: %w", path, err)
	}
	if err := copyWithoutStatus(mw, raw); err != nil {
		return fmt.Errorf("append to mbox %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("append to mbox %s: %w", path, err)
	}
	return f.Sync()
}

// ensureTrailingNewline positions an existing mbox so the next From_ line
// starts a fresh line.
func ensureTrailingNewline(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] != '\n' {
		if _, err := f.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return nil
}

// copyWithoutStatus streams a message, skipping Status/X-Status lines (and
// their continuations) in the header block.
func copyWithoutStatus(w io.Writer, r io.Reader) error {
	br := bufio.NewReader(r)
	inHeader := true
	skipping := false
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			write := true
			if inHeader {
				trimmed := len(line) > 0 && (line == "\n" || line == "\r\n")
				switch {
				case trimmed:
					inHeader = false
					skipping = false
				case line[0] == ' ' || line[0] == '\t':
					write = !skipping
				case hasStatusKey(line):
					skipping = true
					write = false
				default:
					skipping = false
				}
			}
			if write {
				if _, werr := io.WriteString(w, line); werr != nil {
					return werr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func hasStatusKey(line string) bool {
	for _, key := range []string{"Status:", "X-Status:"} {
		if len(line) >= len(key) && equalFoldASCII(line[:len(key)], key) {
			return true
		}
	}
	return false
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Package mailcap implements RFC 1524 mailcap handling: parsing mailcap
// files, selecting an entry for a (type/subtype, mode) pair, evaluating
// test= predicates, and expanding command templates with shell-safe quoting.
package mailcap

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/emx-mail/mimecore/pkgs/config"
)

// LookupMode selects which mailcap field a lookup is for. View lookups accept
// any record with a viewer command; the other modes require their specific
// field to be present, or the scan continues.
type LookupMode int

const (
	LookupView LookupMode = iota
	LookupAutoview
	LookupCompose
	LookupEdit
	LookupPrint
)

// Entry is one resolved mailcap record.
type Entry struct {
	Command             string
	ComposeCommand      string
	ComposeTypedCommand string
	EditCommand         string
	PrintCommand        string
	NameTemplate        string
	Convert             string

	NeedsTerminal  bool
	CopiousOutput  bool
	XNeomuttKeep   bool
	XNeomuttNoWrap bool
}

func (e *Entry) reset() {
	*e = Entry{}
}

// Body carries the attachment state that lookup and expansion need: where the
// content lives on disk and how to resolve Content-Type parameters.
type Body struct {
	// Filename is the file holding the body content; substituted for %s.
	Filename string
	// Charset is the send-mode charset; it overrides the charset parameter
	// in %{charset} unless NoConv is set.
	Charset string
	NoConv  bool
	// Param resolves a Content-Type parameter by name; may be nil.
	Param func(name string) string
}

func (b *Body) param(name string) string {
	if strings.EqualFold(name, "charset") && b.Charset != "" && !b.NoConv {
		return b.Charset
	}
	if b.Param == nil {
		return ""
	}
	return b.Param(name)
}

// ErrNoPath is returned when the mailcap search list is empty.
var ErrNoPath = errors.New("Neither mailcap_path nor MAILCAPS specified")

// NotFoundError reports that no mailcap record matched a type.
type NotFoundError struct {
	Type string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mailcap entry for type %s not found", e.Type)
}

// Engine performs mailcap lookups against the configured search path.
type Engine struct {
	cfg    *config.Subset
	logger *slog.Logger

	// runShell executes a test= predicate and returns its exit status.
	// Replaceable so tests need not fork a shell.
	runShell func(command string) int
}

// NewEngine returns an Engine reading mailcap_path and mailcap_sanitize from
// cfg.
func NewEngine(cfg *config.Subset, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		runShell: func(command string) int {
			cmd := exec.Command("/bin/sh", "-c", command)
			if err := cmd.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return exitErr.ExitCode()
				}
				return 127
			}
			return 0
		},
	}
}

// Sanitize reports whether parameter values are stripped of shell
// meta-characters before expansion.
func (e *Engine) Sanitize() bool {
	return e.cfg.Bool("mailcap_sanitize")
}

// Lookup scans the mailcap_path files in order and returns the first record
// matching mimeType that satisfies the mode's field requirements and its
// test= predicate. An empty search list returns ErrNoPath; no match returns a
// NotFoundError.
func (e *Engine) Lookup(body *Body, mimeType string, mode LookupMode) (*Entry, error) {
	paths := e.cfg.Slist("mailcap_path")
	if paths == nil || paths.Count() == 0 {
		return nil, ErrNoPath
	}

	entry := &Entry{}
	for _, path := range paths.Strings() {
		path = expandPath(path)
		e.logger.Debug("checking mailcap file", "path", path)
		found, err := e.parseFile(body, path, mimeType, entry, mode)
		if err != nil {
			continue
		}
		if found {
			return entry, nil
		}
	}
	return nil, &NotFoundError{Type: mimeType}
}

// parseFile scans one mailcap file for a matching record. Records that match
// the type but fail the mode's requirements or their test= predicate are
// skipped and the scan continues.
func (e *Engine) parseFile(body *Body, filename, mimeType string, entry *Entry, mode LookupMode) (bool, error) {
	slash := strings.IndexByte(mimeType, '/')
	if slash < 0 {
		return false, nil
	}
	baseType := mimeType[:slash]

	f, err := os.Open(filename)
	if err != nil {
		return false, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		line := sc.Text()
		lineNo++
		// Backslash at end of line continues onto the next.
		for strings.HasSuffix(line, "\\") && sc.Scan() {
			line = line[:len(line)-1] + sc.Text()
			lineNo++
		}
		if line == "" || line[0] == '#' {
			continue
		}

		field, rest, more := splitField(line)
		if !typeMatches(field, mimeType, baseType) {
			continue
		}

		entry.reset()
		found := true
		if more {
			entry.Command, rest, more = splitField(rest)
		}

		var hasCompose, hasEdit, hasPrint bool
		for more || rest != "" {
			field, rest, more = splitField(rest)
			if !more && field == "" {
				break
			}
			switch {
			case strings.EqualFold(field, "needsterminal"):
				entry.NeedsTerminal = true
			case strings.EqualFold(field, "copiousoutput"):
				entry.CopiousOutput = true
			// composetyped must be tested before compose.
			case hasFoldPrefix(field, "composetyped"):
				if v, ok := e.fieldText(field, "composetyped", mimeType, filename, lineNo); ok {
					entry.ComposeTypedCommand = v
					hasCompose = true
				}
			case hasFoldPrefix(field, "compose"):
				if v, ok := e.fieldText(field, "compose", mimeType, filename, lineNo); ok {
					entry.ComposeCommand = v
					hasCompose = true
				}
			case hasFoldPrefix(field, "print"):
				if v, ok := e.fieldText(field, "print", mimeType, filename, lineNo); ok {
					entry.PrintCommand = v
					hasPrint = true
				}
			case hasFoldPrefix(field, "edit"):
				if v, ok := e.fieldText(field, "edit", mimeType, filename, lineNo); ok {
					entry.EditCommand = v
					hasEdit = true
				}
			case hasFoldPrefix(field, "nametemplate"):
				if v, ok := e.fieldText(field, "nametemplate", mimeType, filename, lineNo); ok {
					entry.NameTemplate = v
				}
			case hasFoldPrefix(field, "x-convert"):
				if v, ok := e.fieldText(field, "x-convert", mimeType, filename, lineNo); ok {
					entry.Convert = v
				}
			case hasFoldPrefix(field, "test"):
				if v, ok := e.fieldText(field, "test", mimeType, filename, lineNo); ok {
					if !e.runTest(body, mimeType, v) {
						found = false
					}
				}
			case hasFoldPrefix(field, "x-neomutt-keep"):
				entry.XNeomuttKeep = true
			case hasFoldPrefix(field, "x-neomutt-nowrap"):
				entry.XNeomuttNoWrap = true
			}
		}

		switch mode {
		case LookupView:
			if entry.Command == "" {
				found = false
			}
		case LookupAutoview:
			if !entry.CopiousOutput || entry.Command == "" {
				found = false
			}
		case LookupCompose:
			if !hasCompose {
				found = false
			}
		case LookupEdit:
			if !hasEdit {
				found = false
			}
		case LookupPrint:
			if !hasPrint {
				found = false
			}
		}

		if found {
			return true, nil
		}
		entry.reset()
	}
	return false, sc.Err()
}

// runTest expands and executes a test= predicate; a zero exit accepts the
// record.
func (e *Engine) runTest(body *Body, mimeType, testCommand string) bool {
	filename := body.Filename
	if e.Sanitize() {
		filename = SanitizeFilename(filename, true)
	}
	command, _ := e.ExpandCommand(body, filename, mimeType, testCommand)
	status := e.runShell(command)
	if status != 0 {
		e.logger.Debug("mailcap test failed", "command", command, "status", status)
	}
	return status == 0
}

// fieldText extracts the value of a "name = value" field. A missing '=' is a
// malformed entry and is reported but otherwise skipped.
func (e *Engine) fieldText(field, name, mimeType, filename string, line int) (string, bool) {
	rest := strings.TrimSpace(field[len(name):])
	if !strings.HasPrefix(rest, "=") {
		e.logger.Warn(fmt.Sprintf("Improperly formatted entry for type %s in %q line %d", mimeType, filename, line))
		return "", false
	}
	return strings.TrimSpace(rest[1:]), true
}

// splitField cuts the next field off a record at the first unescaped ';'.
// Backslash escapes are preserved in the field text; they are undone during
// command expansion.
func splitField(s string) (field, rest string, more bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case ';':
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
		}
	}
	return strings.TrimSpace(s), "", false
}

// typeMatches compares a mailcap type field against the requested type.
// "base/*" and a bare "base" both match any subtype.
func typeMatches(field, mimeType, baseType string) bool {
	if strings.EqualFold(field, mimeType) {
		return true
	}
	if !strings.EqualFold(firstN(field, len(baseType)), baseType) {
		return false
	}
	remainder := field[min(len(baseType), len(field)):]
	return remainder == "" || remainder == "/*"
}

func firstN(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// expandPath resolves a leading ~ in a mailcap search path component.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

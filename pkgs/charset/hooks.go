package charset

import (
	"fmt"
	"regexp"
)

// LookupKind selects which rewrite table a hook belongs to.
type LookupKind int

const (
	// LookupCharset rewrites charset labels found in messages
	// (charset-hook).
	LookupCharset LookupKind = iota
	// LookupIconv rewrites charset names before handing them to the
	// conversion backend (iconv-hook).
	LookupIconv
)

type lookup struct {
	kind        LookupKind
	re          *regexp.Regexp
	pattern     string
	replacement string
}

// AddLookup registers a rewrite rule. The pattern is a case-insensitive
// regular expression matched against charset names; the first registered rule
// that matches wins. Adding a rule invalidates the converter cache since
// cached converters may have been opened under the old tables.
func (e *Engine) AddLookup(kind LookupKind, pattern, replacement string) error {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return fmt.Errorf("charset lookup %q: %w", pattern, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups = append(e.lookups, lookup{kind: kind, re: re, pattern: pattern, replacement: replacement})
	e.dropCacheLocked()
	return nil
}

// ClearLookups removes all rewrite rules and invalidates the converter cache.
func (e *Engine) ClearLookups() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookups = nil
	e.dropCacheLocked()
}

// Lookup returns the replacement for name under the given table, or "" if no
// rule matches.
func (e *Engine) Lookup(kind LookupKind, name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookupLocked(kind, name)
}

func (e *Engine) lookupLocked(kind LookupKind, name string) string {
	for _, l := range e.lookups {
		if l.kind == kind && l.re.MatchString(name) {
			return l.replacement
		}
	}
	return ""
}

// CharsetLookup applies the charset-hook table to a label taken from a
// message, returning the rewritten name or the input unchanged.
func (e *Engine) CharsetLookup(name string) string {
	if alias := e.Lookup(LookupCharset, name); alias != "" {
		return alias
	}
	return name
}

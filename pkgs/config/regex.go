package config

import (
	"regexp"
	"strings"
)

// Regex is a user-visible regex binding: the source pattern, its compiled
// matcher and a negation flag. A leading "!" on the pattern sets the flag.
type Regex struct {
	Pattern string
	Re      *regexp.Regexp
	Not     bool
}

// Matches applies the regex to s, honouring the negation flag.
func (r *Regex) Matches(s string) bool {
	if r == nil || r.Re == nil {
		return false
	}
	return r.Re.MatchString(s) != r.Not
}

// compileRegex builds a Regex from pattern text, replacing both the source
// text and the matcher atomically.
func compileRegex(pattern string) (*Regex, error) {
	if pattern == "" {
		return nil, nil
	}
	src := pattern
	not := false
	if strings.HasPrefix(src, "!") {
		not = true
		src = strings.TrimSpace(src[1:])
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Regex{Pattern: pattern, Re: re, Not: not}, nil
}

type regexType struct{}

func (regexType) Name() string { return "regex" }

func regexPattern(v any) string {
	if r, ok := v.(*Regex); ok && r != nil {
		return r.Pattern
	}
	return ""
}

func (regexType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	if regexPattern(slot.val) == value && (value != "" || slot.val != nil) {
		return Success | SucNoChange
	}
	rx, cerr := compileRegex(value)
	if cerr != nil {
		setErr(err, "invalid regex %q: %s", value, cerr)
		return ErrInvalid | InvType
	}
	if rc := set.runValidator(def, rx, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = rx
	if rx == nil {
		return Success | SucEmpty
	}
	return Success
}

func (regexType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	p := regexPattern(slot.val)
	out.WriteString(p)
	if p == "" {
		return Success | SucEmpty
	}
	return Success
}

func (regexType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	rx, ok := value.(*Regex)
	if !ok && value != nil {
		setErr(err, "invalid regex value")
		return ErrInvalid | InvType
	}
	if regexPattern(slot.val) == regexPattern(rx) && slot.val != nil {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, rx, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = rx
	return Success
}

func (regexType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	rx, _ := slot.val.(*Regex)
	if rx == nil {
		return (*Regex)(nil), Success | SucEmpty
	}
	return rx, Success
}

func (regexType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	pattern, _ := def.Initial.(string)
	if regexPattern(slot.val) == pattern && slot.val != nil {
		return Success | SucNoChange
	}
	rx, cerr := compileRegex(pattern)
	if cerr != nil {
		setErr(err, "invalid initial regex %q: %s", pattern, cerr)
		return ErrCode
	}
	slot.val = rx
	return Success
}

func (regexType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	initial, _ := def.Initial.(string)
	return regexPattern(slot.val) != initial
}

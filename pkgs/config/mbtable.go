package config

import "strings"

// MbTable is a string parsed into a table of multibyte (rune) cells, used for
// things like flag and tree-drawing character sets.
type MbTable struct {
	Orig  string
	Chars []string
}

// ParseMbTable splits a string into one cell per rune.
func ParseMbTable(s string) *MbTable {
	t := &MbTable{Orig: s}
	for _, r := range s {
		t.Chars = append(t.Chars, string(r))
	}
	return t
}

// Get returns cell i, or the empty string when out of range.
func (t *MbTable) Get(i int) string {
	if t == nil || i < 0 || i >= len(t.Chars) {
		return ""
	}
	return t.Chars[i]
}

func mbtableOrig(v any) string {
	if t, ok := v.(*MbTable); ok && t != nil {
		return t.Orig
	}
	return ""
}

type mbtableType struct{}

func (mbtableType) Name() string { return "mbtable" }

func (mbtableType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	if slot.val != nil && mbtableOrig(slot.val) == value {
		return Success | SucNoChange
	}
	t := ParseMbTable(value)
	if rc := set.runValidator(def, t, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = t
	if value == "" {
		return Success | SucEmpty
	}
	return Success
}

func (mbtableType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	s := mbtableOrig(slot.val)
	out.WriteString(s)
	if s == "" {
		return Success | SucEmpty
	}
	return Success
}

func (mbtableType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	t, ok := value.(*MbTable)
	if !ok && value != nil {
		setErr(err, "invalid mbtable value")
		return ErrInvalid | InvType
	}
	if slot.val != nil && mbtableOrig(slot.val) == mbtableOrig(t) {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, t, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = t
	return Success
}

func (mbtableType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	t, _ := slot.val.(*MbTable)
	return t, Success
}

func (mbtableType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	initial, _ := def.Initial.(string)
	if slot.val != nil && mbtableOrig(slot.val) == initial {
		return Success | SucNoChange
	}
	slot.val = ParseMbTable(initial)
	return Success
}

func (mbtableType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	initial, _ := def.Initial.(string)
	return mbtableOrig(slot.val) != initial
}

package config

import (
	"strings"
)

// SlistFlags control an Slist's separator and membership policy. Passed via
// Def.Data.
type SlistFlags uint8

const (
	// Separator kinds; exactly one should be set. SepSpace is the default.
	SepSpace SlistFlags = 0
	SepComma SlistFlags = 1 << 0
	SepColon SlistFlags = 1 << 1

	// AllowEmpty keeps empty members instead of dropping them.
	AllowEmpty SlistFlags = 1 << 2
	// AllowDupes keeps duplicate members instead of ignoring them.
	AllowDupes SlistFlags = 1 << 3
	// CaseSensitive compares members byte-exactly.
	CaseSensitive SlistFlags = 1 << 4
)

func (f SlistFlags) separator() byte {
	switch {
	case f&SepComma != 0:
		return ','
	case f&SepColon != 0:
		return ':'
	}
	return ' '
}

// Slist is an ordered string list with a separator kind and membership flags.
type Slist struct {
	Items []string
	Flags SlistFlags
}

// ParseSlist splits value on the separator dictated by flags.
func ParseSlist(value string, flags SlistFlags) *Slist {
	sl := &Slist{Flags: flags}
	if value == "" {
		return sl
	}
	for _, item := range strings.Split(value, string(flags.separator())) {
		sl.add(item)
	}
	return sl
}

// Count returns the number of members.
func (sl *Slist) Count() int {
	if sl == nil {
		return 0
	}
	return len(sl.Items)
}

// Strings returns the members as a plain slice. Safe on a nil list.
func (sl *Slist) Strings() []string {
	if sl == nil {
		return nil
	}
	return sl.Items
}

// String renders the list with its own separator.
func (sl *Slist) String() string {
	if sl == nil {
		return ""
	}
	return strings.Join(sl.Items, string(sl.Flags.separator()))
}

func (sl *Slist) equalMember(a, b string) bool {
	if sl.Flags&CaseSensitive != 0 {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// Contains reports membership under the list's case policy.
func (sl *Slist) Contains(item string) bool {
	if sl == nil {
		return false
	}
	for _, m := range sl.Items {
		if sl.equalMember(m, item) {
			return true
		}
	}
	return false
}

func (sl *Slist) add(item string) {
	if item == "" && sl.Flags&AllowEmpty == 0 {
		return
	}
	if sl.Flags&AllowDupes == 0 && sl.Contains(item) {
		return
	}
	sl.Items = append(sl.Items, item)
}

func (sl *Slist) remove(item string) bool {
	for i, m := range sl.Items {
		if sl.equalMember(m, item) {
			sl.Items = append(sl.Items[:i], sl.Items[i+1:]...)
			return true
		}
	}
	return false
}

// clone copies the list so that mutations never alias a previously returned
// value.
func (sl *Slist) clone() *Slist {
	if sl == nil {
		return nil
	}
	out := &Slist{Flags: sl.Flags, Items: make([]string, len(sl.Items))}
	copy(out.Items, sl.Items)
	return out
}

// Equal compares two lists member-by-member.
func (sl *Slist) Equal(other *Slist) bool {
	if sl.Count() != other.Count() {
		return false
	}
	for i := range sl.Strings() {
		if sl.Items[i] != other.Items[i] {
			return false
		}
	}
	return true
}

type slistType struct{}

func (slistType) Name() string { return "slist" }

func slistFlagsOf(def *Def) SlistFlags {
	f, _ := def.Data.(SlistFlags)
	return f
}

func (slistType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	sl := ParseSlist(value, slistFlagsOf(def))
	if cur, isSet := slot.val.(*Slist); isSet && cur.Equal(sl) {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, sl, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = sl
	if sl.Count() == 0 {
		return Success | SucEmpty
	}
	return Success
}

func (slistType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	sl, _ := slot.val.(*Slist)
	out.WriteString(sl.String())
	if sl.Count() == 0 {
		return Success | SucEmpty
	}
	return Success
}

func (slistType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	sl, ok := value.(*Slist)
	if !ok && value != nil {
		setErr(err, "invalid slist value")
		return ErrInvalid | InvType
	}
	if cur, isSet := slot.val.(*Slist); isSet && cur.Equal(sl) {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, sl, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = sl.clone()
	return Success
}

func (slistType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	sl, _ := slot.val.(*Slist)
	if sl.Count() == 0 {
		return sl, Success | SucEmpty
	}
	return sl, Success
}

func (slistType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	initial, _ := def.Initial.(string)
	sl := ParseSlist(initial, slistFlagsOf(def))
	if cur, isSet := slot.val.(*Slist); isSet && cur.Equal(sl) {
		return Success | SucNoChange
	}
	slot.val = sl
	return Success
}

func (slistType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	initial, _ := def.Initial.(string)
	sl, _ := slot.val.(*Slist)
	return !sl.Equal(ParseSlist(initial, slistFlagsOf(def)))
}

// StringPlusEquals appends members, honouring the duplicate policy.
func (t slistType) StringPlusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	cur, _ := slot.val.(*Slist)
	next := cur.clone()
	if next == nil {
		next = &Slist{Flags: slistFlagsOf(def)}
	}
	add := ParseSlist(value, slistFlagsOf(def))
	for _, item := range add.Strings() {
		next.add(item)
	}
	if cur.Equal(next) {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, next, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = next
	return Success
}

// StringMinusEquals removes members; absent members are ignored.
func (t slistType) StringMinusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	cur, _ := slot.val.(*Slist)
	next := cur.clone()
	if next == nil {
		return Success | SucNoChange
	}
	removed := false
	for _, item := range ParseSlist(value, slistFlagsOf(def)).Strings() {
		if next.remove(item) {
			removed = true
		}
	}
	if !removed {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, next, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = next
	return Success
}

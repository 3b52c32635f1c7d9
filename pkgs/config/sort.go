package config

import "strings"

// Sort flag bits combined with a SortDef method value.
const (
	// SortReverse inverts the comparison order ("reverse-" prefix).
	SortReverse = 1 << 16
	// SortLast sorts by the last member of a thread ("last-" prefix).
	SortLast = 1 << 17

	sortMethodMask = 0xffff
)

// SortDef supplies a sort variable's method names via Def.Data.
type SortDef struct {
	Methods map[string]int
	// AllowReverse and AllowLast permit the corresponding prefixes.
	AllowReverse bool
	AllowLast    bool
}

func (sd *SortDef) nameOf(v int) string {
	for name, val := range sd.Methods {
		if val == v&sortMethodMask {
			return name
		}
	}
	return ""
}

type sortType struct{}

func (sortType) Name() string { return "sort" }

func sortDefOf(def *Def) *SortDef {
	sd, _ := def.Data.(*SortDef)
	return sd
}

func parseSort(sd *SortDef, value string) (int, bool) {
	flags := 0
	rest := strings.ToLower(strings.TrimSpace(value))
	for {
		if sd.AllowReverse && strings.HasPrefix(rest, "reverse-") {
			flags |= SortReverse
			rest = rest[len("reverse-"):]
			continue
		}
		if sd.AllowLast && strings.HasPrefix(rest, "last-") {
			flags |= SortLast
			rest = rest[len("last-"):]
			continue
		}
		break
	}
	method, ok := sd.Methods[rest]
	if !ok {
		return 0, false
	}
	return method | flags, true
}

func formatSort(sd *SortDef, v int) string {
	var b strings.Builder
	if v&SortReverse != 0 {
		b.WriteString("reverse-")
	}
	if v&SortLast != 0 {
		b.WriteString("last-")
	}
	b.WriteString(sd.nameOf(v))
	return b.String()
}

func (sortType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	sd := sortDefOf(def)
	if sd == nil {
		return ErrCode
	}
	v, ok := parseSort(sd, value)
	if !ok {
		setErr(err, "invalid sort method %q for %s", value, def.Name)
		return ErrInvalid | InvType
	}
	if cur, isSet := slot.val.(int); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	return Success
}

func (sortType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	sd := sortDefOf(def)
	if sd == nil {
		return ErrCode
	}
	v, _ := slot.val.(int)
	out.WriteString(formatSort(sd, v))
	return Success
}

func (sortType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	sd := sortDefOf(def)
	if sd == nil {
		return ErrCode
	}
	v, ok := value.(int)
	if !ok || sd.nameOf(v) == "" {
		setErr(err, "invalid sort value for %s", def.Name)
		return ErrInvalid | InvType
	}
	if cur, isSet := slot.val.(int); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	return Success
}

func (sortType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	v, _ := slot.val.(int)
	return v, Success
}

func (sortType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	v, _ := def.Initial.(int)
	if cur, isSet := slot.val.(int); isSet && cur == v {
		return Success | SucNoChange
	}
	slot.val = v
	return Success
}

func (sortType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	v, _ := slot.val.(int)
	initial, _ := def.Initial.(int)
	return v != initial
}

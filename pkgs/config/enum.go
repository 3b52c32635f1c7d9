package config

import "strings"

// EnumDef supplies the value set of an enumeration variable via Def.Data.
type EnumDef struct {
	Lookup map[string]int
}

// nameOf finds the spelling of an enum value.
func (ed *EnumDef) nameOf(v int) string {
	for name, val := range ed.Lookup {
		if val == v {
			return name
		}
	}
	return ""
}

type enumType struct{}

func (enumType) Name() string { return "enumeration" }

func enumDefOf(def *Def) *EnumDef {
	ed, _ := def.Data.(*EnumDef)
	return ed
}

func (enumType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	ed := enumDefOf(def)
	if ed == nil {
		return ErrCode
	}
	v, ok := ed.Lookup[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		setErr(err, "invalid enum value %q for %s", value, def.Name)
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

func (enumType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	ed := enumDefOf(def)
	if ed == nil {
		return ErrCode
	}
	v, _ := slot.val.(int)
	name := ed.nameOf(v)
	if name == "" {
		setErr(out, "invalid enum value %d", v)
		return ErrInvalid | InvType
	}
	out.WriteString(name)
	return Success
}

func (enumType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	ed := enumDefOf(def)
	if ed == nil {
		return ErrCode
	}
	v, ok := value.(int)
	if !ok || ed.nameOf(v) == "" {
		setErr(err, "invalid enum value for %s", def.Name)
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

func (enumType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	v, _ := slot.val.(int)
	return v, Success
}

func (enumType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	v, _ := def.Initial.(int)
	if cur, isSet := slot.val.(int); isSet && cur == v {
		return Success | SucNoChange
	}
	slot.val = v
	return Success
}

func (enumType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	v, _ := slot.val.(int)
	initial, _ := def.Initial.(int)
	return v != initial
}

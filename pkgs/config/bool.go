package config

import "strings"

// boolValues maps accepted spellings to values. Even indices are false,
// odd are true.
var boolValues = map[string]bool{
	"no": false, "yes": true,
	"false": false, "true": true,
	"0": false, "1": true,
	"off": false, "on": true,
}

type boolType struct{}

func (boolType) Name() string { return "boolean" }

func (boolType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	v, ok := boolValues[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		setErr(err, "invalid boolean value %q", value)
		return ErrInvalid | InvType
	}
	if cur, isSet := slot.val.(bool); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	return Success
}

func (boolType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	v, _ := slot.val.(bool)
	if v {
		out.WriteString("yes")
	} else {
		out.WriteString("no")
	}
	return Success
}

func (boolType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	v, ok := value.(bool)
	if !ok {
		setErr(err, "invalid boolean value")
		return ErrInvalid | InvType
	}
	if cur, isSet := slot.val.(bool); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	return Success
}

func (boolType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	v, _ := slot.val.(bool)
	return v, Success
}

func (boolType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	v, _ := def.Initial.(bool)
	if cur, isSet := slot.val.(bool); isSet && cur == v {
		return Success | SucNoChange
	}
	slot.val = v
	return Success
}

func (boolType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	v, _ := slot.val.(bool)
	initial, _ := def.Initial.(bool)
	return v != initial
}

// Toggle flips a boolean element in place, bypassing the no-change test.
func (sub *Subset) Toggle(name string, err *strings.Builder) Result {
	he := sub.lookupForWrite(name)
	if he == nil {
		setErr(err, "unknown variable %q", name)
		return ErrUnknown
	}
	if !he.self().Type.Is(TypeBool) {
		setErr(err, "variable %q is not a boolean", name)
		return ErrInvalid | InvType
	}
	cur := sub.Bool(name)
	return sub.SetNative(name, !cur, err)
}

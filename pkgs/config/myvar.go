package config

import "strings"

// myVarType backs user-defined "my_" variables: free-form strings that may be
// created and deleted at runtime.
type myVarType struct{}

func (myVarType) Name() string { return "myvar" }

func (myVarType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	if cur, isSet := slot.val.(string); isSet && cur == value {
		return Success | SucNoChange
	}
	slot.val = value
	if value == "" {
		return Success | SucEmpty
	}
	return Success
}

func (myVarType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	v, _ := slot.val.(string)
	out.WriteString(v)
	if v == "" {
		return Success | SucEmpty
	}
	return Success
}

func (t myVarType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	v, ok := value.(string)
	if !ok {
		setErr(err, "invalid myvar value")
		return ErrInvalid | InvType
	}
	return t.StringSet(set, slot, def, v, err)
}

func (myVarType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	v, _ := slot.val.(string)
	return v, Success
}

func (myVarType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	v, _ := def.Initial.(string)
	slot.val = v
	return Success
}

func (myVarType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	v, _ := slot.val.(string)
	initial, _ := def.Initial.(string)
	return v != initial
}

func (t myVarType) StringPlusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	if value == "" {
		return Success | SucNoChange
	}
	cur, _ := slot.val.(string)
	return t.StringSet(set, slot, def, cur+value, err)
}

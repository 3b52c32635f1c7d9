package config

import (
	"strconv"
	"strings"
)

// longType stores a full-range 64-bit integer.
type longType struct{}

func (longType) Name() string { return "long" }

func longCheck(def *Def, v int64, err *strings.Builder) Result {
	if def.Type&FlagNotNegative != 0 && v < 0 {
		setErr(err, "option %s may not be negative", def.Name)
		return ErrInvalid | InvValidator
	}
	return Success
}

func (longType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	v, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if perr != nil {
		setErr(err, "invalid number %q", value)
		return ErrInvalid | InvType
	}
	if rc := longCheck(def, v, err); !rc.IsSuccess() {
		return rc
	}
	if cur, isSet := slot.val.(int64); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	return Success
}

func (longType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	v, _ := slot.val.(int64)
	out.WriteString(strconv.FormatInt(v, 10))
	return Success
}

func (longType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	v, ok := toInt64(value)
	if !ok {
		setErr(err, "invalid number value")
		return ErrInvalid | InvType
	}
	if rc := longCheck(def, v, err); !rc.IsSuccess() {
		return rc
	}
	if cur, isSet := slot.val.(int64); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	return Success
}

func (longType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	v, _ := slot.val.(int64)
	return v, Success
}

func (longType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	v, _ := toInt64(def.Initial)
	if cur, isSet := slot.val.(int64); isSet && cur == v {
		return Success | SucNoChange
	}
	slot.val = v
	return Success
}

func (longType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	v, _ := slot.val.(int64)
	initial, _ := toInt64(def.Initial)
	return v != initial
}

func (t longType) StringPlusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	delta, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if perr != nil {
		setErr(err, "invalid number %q", value)
		return ErrInvalid | InvType
	}
	cur, _ := slot.val.(int64)
	return t.NativeSet(set, slot, def, cur+delta, err)
}

func (t longType) StringMinusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	delta, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if perr != nil {
		setErr(err, "invalid number %q", value)
		return ErrInvalid | InvType
	}
	cur, _ := slot.val.(int64)
	return t.NativeSet(set, slot, def, cur-delta, err)
}

package config

import (
	"math"
	"strconv"
	"strings"
)

// numberType stores a 16-bit-range integer. The native representation is
// int64 so that the accessors share code with longType.
type numberType struct{}

func (numberType) Name() string { return "number" }

func numberCheck(def *Def, v int64, err *strings.Builder) Result {
	if v < math.MinInt16 || v > math.MaxInt16 {
		setErr(err, "number %d is out of range for %s", v, def.Name)
		return ErrInvalid | InvType
	}
	if def.Type&FlagNotNegative != 0 && v < 0 {
		setErr(err, "option %s may not be negative", def.Name)
		return ErrInvalid | InvValidator
	}
	return Success
}

func (numberType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	v, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if perr != nil {
		setErr(err, "invalid number %q", value)
		return ErrInvalid | InvType
	}
	if rc := numberCheck(def, v, err); !rc.IsSuccess() {
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

func (numberType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	v, _ := slot.val.(int64)
	out.WriteString(strconv.FormatInt(v, 10))
	return Success
}

func (numberType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	v, ok := toInt64(value)
	if !ok {
		setErr(err, "invalid number value")
		return ErrInvalid | InvType
	}
	if rc := numberCheck(def, v, err); !rc.IsSuccess() {
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

func (numberType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	v, _ := slot.val.(int64)
	return v, Success
}

func (numberType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	v, _ := toInt64(def.Initial)
	if cur, isSet := slot.val.(int64); isSet && cur == v {
		return Success | SucNoChange
	}
	slot.val = v
	return Success
}

func (numberType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	v, _ := slot.val.(int64)
	initial, _ := toInt64(def.Initial)
	return v != initial
}

func (t numberType) StringPlusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	delta, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if perr != nil {
		setErr(err, "invalid number %q", value)
		return ErrInvalid | InvType
	}
	cur, _ := slot.val.(int64)
	return t.NativeSet(set, slot, def, cur+delta, err)
}

func (t numberType) StringMinusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	delta, perr := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if perr != nil {
		setErr(err, "invalid number %q", value)
		return ErrInvalid | InvType
	}
	cur, _ := slot.val.(int64)
	return t.NativeSet(set, slot, def, cur-delta, err)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	}
	return 0, false
}

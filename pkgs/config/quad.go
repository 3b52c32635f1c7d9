package config

import "strings"

// QuadValue is a four-state option: a yes/no default plus whether the user
// should be asked.
type QuadValue int

const (
	QuadNo QuadValue = iota
	QuadYes
	QuadAskNo
	QuadAskYes
)

var quadNames = []string{"no", "yes", "ask-no", "ask-yes"}

func (q QuadValue) String() string {
	if q < QuadNo || q > QuadAskYes {
		return "no"
	}
	return quadNames[q]
}

// IsAsk reports whether the value requires prompting the user.
func (q QuadValue) IsAsk() bool { return q == QuadAskNo || q == QuadAskYes }

// Default returns the answer implied when the user is not asked.
func (q QuadValue) Default() bool { return q == QuadYes || q == QuadAskYes }

type quadType struct{}

func (quadType) Name() string { return "quad" }

func parseQuad(value string) (QuadValue, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "no", "false":
		return QuadNo, true
	case "yes", "true":
		return QuadYes, true
	case "ask-no":
		return QuadAskNo, true
	case "ask-yes":
		return QuadAskYes, true
	}
	return QuadNo, false
}

func (quadType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	v, ok := parseQuad(value)
	if !ok {
		setErr(err, "invalid quad value %q", value)
		return ErrInvalid | InvType
	}
	if cur, isSet := slot.val.(QuadValue); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	return Success
}

func (quadType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	v, _ := slot.val.(QuadValue)
	out.WriteString(v.String())
	return Success
}

func (quadType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	v, ok := value.(QuadValue)
	if !ok || v < QuadNo || v > QuadAskYes {
		setErr(err, "invalid quad value")
		return ErrInvalid | InvType
	}
	if cur, isSet := slot.val.(QuadValue); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	return Success
}

func (quadType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	v, _ := slot.val.(QuadValue)
	return v, Success
}

func (quadType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	v, _ := def.Initial.(QuadValue)
	if cur, isSet := slot.val.(QuadValue); isSet && cur == v {
		return Success | SucNoChange
	}
	slot.val = v
	return Success
}

func (quadType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	v, _ := slot.val.(QuadValue)
	initial, _ := def.Initial.(QuadValue)
	return v != initial
}

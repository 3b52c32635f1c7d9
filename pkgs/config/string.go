package config

import (
	"os"
	"path/filepath"
	"strings"
)

// stringType backs the string, command, path and mailbox variable types.
// They share storage and differ in normalisation: path and mailbox expand a
// leading "~" to the user's home directory at set time.
type stringType struct {
	kind DataType
}

func (t stringType) Name() string { return t.kind.String() }

func (t stringType) normalize(value string) string {
	if t.kind != TypePath && t.kind != TypeMailbox {
		return value
	}
	if value == "~" || strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(value, "~"))
		}
	}
	return value
}

func (t stringType) StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	v := t.normalize(value)
	if cur, isSet := slot.val.(string); isSet && cur == v {
		return Success | SucNoChange
	}
	if rc := set.runValidator(def, v, err); !rc.IsSuccess() {
		return rc
	}
	slot.val = v
	if v == "" {
		return Success | SucEmpty
	}
	return Success
}

func (t stringType) StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result {
	v, _ := slot.val.(string)
	out.WriteString(v)
	if v == "" {
		return Success | SucEmpty
	}
	return Success
}

func (t stringType) NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result {
	v, ok := value.(string)
	if !ok {
		setErr(err, "invalid string value")
		return ErrInvalid | InvType
	}
	return t.StringSet(set, slot, def, v, err)
}

func (t stringType) NativeGet(set *Set, slot *Slot, def *Def) (any, Result) {
	v, _ := slot.val.(string)
	if v == "" {
		return v, Success | SucEmpty
	}
	return v, Success
}

func (t stringType) Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result {
	v, _ := def.Initial.(string)
	v = t.normalize(v)
	if cur, isSet := slot.val.(string); isSet && cur == v {
		return Success | SucNoChange
	}
	slot.val = v
	return Success
}

func (t stringType) HasBeenSet(set *Set, slot *Slot, def *Def) bool {
	v, _ := slot.val.(string)
	initial, _ := def.Initial.(string)
	return v != t.normalize(initial)
}

// StringPlusEquals concatenates onto the stored string.
func (t stringType) StringPlusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result {
	if value == "" {
		return Success | SucNoChange
	}
	cur, _ := slot.val.(string)
	return t.StringSet(set, slot, def, cur+value, err)
}

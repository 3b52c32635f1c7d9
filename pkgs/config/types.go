// Package config implements a typed configuration store with pluggable value
// types, per-definition validation, scoped inheritance and change
// notification.
//
// A Set holds the variable definitions and their current values. A Subset is
// a scoped view over a Set (per-account, per-folder); reading a variable that
// the scope has not overridden falls through to the parent scope. Observers
// registered on any subset receive events for mutations in that subset or any
// descendant.
package config

import (
	"fmt"
	"strings"
)

// DataType identifies the type of a variable, plus per-element flags in the
// upper bits.
type DataType uint32

// Variable types.
const (
	TypeUnknown DataType = iota
	TypeBool
	TypeEnum
	TypeLong
	TypeMbtable
	TypeMyVar
	TypeNumber
	TypePath
	TypeQuad
	TypeRegex
	TypeSlist
	TypeSort
	TypeString
	TypeCommand
	TypeMailbox
)

// Per-element flags, stored alongside the type.
const (
	// FlagInherited marks an element that belongs to a scoped subset. While
	// the element has no type bits it is purely inheriting; once set, the
	// type bits are added and the element overrides its parent.
	FlagInherited DataType = 1 << 16
	// FlagOnStartup restricts writes to the startup phase. After
	// Set.DoneStartup every set fails with InvValidator.
	FlagOnStartup DataType = 1 << 17
	// FlagNotNegative rejects negative values on numeric types.
	FlagNotNegative DataType = 1 << 18
	// FlagDeprecated accepts and discards writes with a warning result.
	FlagDeprecated DataType = 1 << 19
)

const typeMask DataType = 0xffff

// Base strips the flags, leaving only the variable type.
func (t DataType) Base() DataType { return t & typeMask }

// Is reports whether the base type equals want.
func (t DataType) Is(want DataType) bool { return t.Base() == want }

func (t DataType) String() string {
	switch t.Base() {
	case TypeBool:
		return "boolean"
	case TypeEnum:
		return "enumeration"
	case TypeLong:
		return "long"
	case TypeMbtable:
		return "mbtable"
	case TypeMyVar:
		return "myvar"
	case TypeNumber:
		return "number"
	case TypePath:
		return "path"
	case TypeQuad:
		return "quad"
	case TypeRegex:
		return "regex"
	case TypeSlist:
		return "slist"
	case TypeSort:
		return "sort"
	case TypeString:
		return "string"
	case TypeCommand:
		return "command"
	case TypeMailbox:
		return "mailbox"
	}
	return "unknown"
}

// Slot is the storage cell for one variable's current value. A nil *Slot in a
// type callback means "operate on the definition's initial value".
type Slot struct {
	val any
}

// Value returns the stored native value.
func (s *Slot) Value() any { return s.val }

// Type defines the behaviour of one variable type. All callbacks operate on a
// Slot so that the same code serves the definition's own storage and a
// subset's private override storage.
type Type interface {
	// Name returns the human-readable type name.
	Name() string
	// StringSet parses value and stores the result in slot. If initial is
	// true the definition's recorded initial value is replaced as well.
	StringSet(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result
	// StringGet renders the slot's value into out.
	StringGet(set *Set, slot *Slot, def *Def, out *strings.Builder) Result
	// NativeSet stores a native value in slot.
	NativeSet(set *Set, slot *Slot, def *Def, value any, err *strings.Builder) Result
	// NativeGet returns the slot's native value.
	NativeGet(set *Set, slot *Slot, def *Def) (any, Result)
	// Reset restores the definition's initial value into slot.
	Reset(set *Set, slot *Slot, def *Def, err *strings.Builder) Result
	// HasBeenSet reports whether the slot differs from the initial value.
	HasBeenSet(set *Set, slot *Slot, def *Def) bool
}

// PlusType is implemented by types supporting the "+=" operation.
type PlusType interface {
	StringPlusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result
}

// MinusType is implemented by types supporting the "-=" operation.
type MinusType interface {
	StringMinusEquals(set *Set, slot *Slot, def *Def, value string, err *strings.Builder) Result
}

// setErr writes a formatted message into an optional error builder.
func setErr(err *strings.Builder, format string, args ...any) {
	if err == nil {
		return
	}
	err.Reset()
	fmt.Fprintf(err, format, args...)
}

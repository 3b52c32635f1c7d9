package config

import "strings"

// Validator vets a candidate value before it is committed. It runs after the
// would-change test; returning a non-nil error aborts the set and leaves the
// store unchanged. The error text is surfaced to the caller.
type Validator func(def *Def, value any) error

// Def is the definition of one variable: its name, type, initial value and
// the storage slot holding its current value.
type Def struct {
	Name      string
	Type      DataType
	Initial   any
	Data      any // extra type-specific data, e.g. *EnumDef, *SortDef, SlistFlags
	Validator Validator
	Docs      string

	slot       Slot
	initialSet bool // Initial was re-owned by a type callback
}

// HashElem is one entry in the store's name map. Non-inherited elements point
// at a Def; inherited elements point at an Inheritance record instead.
type HashElem struct {
	name    string
	typ     DataType
	def     *Def
	inherit *Inheritance
}

// Name returns the (possibly scoped) element name.
func (he *HashElem) Name() string { return he.name }

// Type returns the element's type tag, including FlagInherited.
func (he *HashElem) Type() DataType { return he.typ }

// IsInherited reports whether the element belongs to a scoped subset.
func (he *HashElem) IsInherited() bool { return he.typ&FlagInherited != 0 }

// isPureInherit reports whether an inherited element has no local override.
func (he *HashElem) isPureInherit() bool {
	return he.IsInherited() && he.typ.Base() == TypeUnknown
}

// Inheritance is the child record of a scoped element: a back-pointer to the
// parent element and private storage for an override value.
type Inheritance struct {
	parent *HashElem
	name   string
	slot   Slot
}

// resolve follows pure-inherit links up to the element whose value governs,
// and returns that element together with the slot and definition to use for
// writes on the original element.
func (he *HashElem) self() *Def {
	e := he
	for e.inherit != nil {
		e = e.inherit.parent
	}
	return e.def
}

// writeSlot returns the slot a mutation of this element must use.
func (he *HashElem) writeSlot() *Slot {
	if he.inherit != nil {
		return &he.inherit.slot
	}
	return &he.def.slot
}

// readTarget walks to the element whose slot currently supplies the value.
// The second return is true when the read fell through at least one level.
func (he *HashElem) readTarget() (*HashElem, bool) {
	e := he
	inherited := false
	for e.isPureInherit() {
		e = e.inherit.parent
		inherited = true
	}
	return e, inherited
}

// scopedName joins a scope prefix and a variable name.
func scopedName(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + ":" + name
}

// baseName strips any scope prefixes from an element name.
func baseName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Set is the collection of config definitions and their values. All reads and
// writes happen on the owning thread; the Set performs no locking of its own.
type Set struct {
	elems  map[string]*HashElem
	types  map[DataType]Type
	logger *slog.Logger

	startupComplete bool
}

// NewSet creates an empty Set with the standard variable types registered.
func NewSet(logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Set{
		elems:  make(map[string]*HashElem),
		types:  make(map[DataType]Type),
		logger: logger,
	}
	s.RegisterType(TypeBool, boolType{})
	s.RegisterType(TypeEnum, enumType{})
	s.RegisterType(TypeLong, longType{})
	s.RegisterType(TypeMbtable, mbtableType{})
	s.RegisterType(TypeMyVar, myVarType{})
	s.RegisterType(TypeNumber, numberType{})
	s.RegisterType(TypePath, stringType{kind: TypePath})
	s.RegisterType(TypeQuad, quadType{})
	s.RegisterType(TypeRegex, regexType{})
	s.RegisterType(TypeSlist, slistType{})
	s.RegisterType(TypeSort, sortType{})
	s.RegisterType(TypeString, stringType{kind: TypeString})
	s.RegisterType(TypeCommand, stringType{kind: TypeCommand})
	s.RegisterType(TypeMailbox, stringType{kind: TypeMailbox})
	return s
}

// RegisterType installs a type handler. Registering the same tag twice is a
// programming error.
func (s *Set) RegisterType(tag DataType, t Type) {
	if _, dup := s.types[tag.Base()]; dup {
		panic(fmt.Sprintf("config: duplicate type registration for %s", tag.Base()))
	}
	s.types[tag.Base()] = t
}

// typeFor returns the handler for an element's base type.
func (s *Set) typeFor(t DataType) Type { return s.types[t.Base()] }

// DoneStartup releases the startup latch. Variables flagged FlagOnStartup
// reject every set from this point on.
func (s *Set) DoneStartup() { s.startupComplete = true }

// StartupComplete reports whether the startup latch has been released.
func (s *Set) StartupComplete() bool { return s.startupComplete }

// Register installs variable definitions. The definition's initial value is
// copied into its storage slot. Registering a duplicate name fails.
func (s *Set) Register(defs []*Def) error {
	for _, def := range defs {
		if _, exists := s.elems[def.Name]; exists {
			return fmt.Errorf("config: variable %q already registered", def.Name)
		}
		t := s.typeFor(def.Type)
		if t == nil {
			return fmt.Errorf("config: variable %q has unknown type", def.Name)
		}
		he := &HashElem{name: def.Name, typ: def.Type, def: def}
		rc := t.Reset(s, &def.slot, def, nil)
		if !rc.IsSuccess() {
			return fmt.Errorf("config: variable %q rejected its initial value", def.Name)
		}
		s.elems[def.Name] = he
	}
	return nil
}

// CreateVariable registers a single user-defined (myvar) variable.
func (s *Set) CreateVariable(name, value string, err *strings.Builder) (*HashElem, Result) {
	if _, exists := s.elems[name]; exists {
		setErr(err, "variable %q already exists", name)
		return nil, ErrCode
	}
	def := &Def{Name: name, Type: TypeMyVar, Initial: value}
	if e := s.Register([]*Def{def}); e != nil {
		setErr(err, "%s", e)
		return nil, ErrCode
	}
	return s.elems[name], Success
}

// Lookup finds an element by (scoped) name.
func (s *Set) Lookup(name string) *HashElem { return s.elems[name] }

// Names returns all registered element names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.elems))
	for n := range s.elems {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// createInheritance inserts a child element for parent under the scoped name.
// It is idempotent: an existing element is returned unchanged.
func (s *Set) createInheritance(parent *HashElem, name string) *HashElem {
	if he := s.elems[name]; he != nil {
		return he
	}
	inh := &Inheritance{parent: parent, name: name}
	he := &HashElem{name: name, typ: FlagInherited, inherit: inh}
	s.elems[name] = he
	return he
}

// gateStartup enforces the FlagOnStartup latch and the FlagDeprecated
// discard. It returns a non-success result (or SucWarning pseudo-success)
// when the caller must not proceed.
func (s *Set) gateStartup(he *HashElem, err *strings.Builder) (Result, bool) {
	def := he.self()
	if def == nil {
		return ErrCode, false
	}
	if def.Type&FlagDeprecated != 0 {
		setErr(err, "variable %q is deprecated", def.Name)
		// Value is discarded, so observers are not notified either.
		return Success | SucWarning | SucNoChange, false
	}
	if def.Type&FlagOnStartup != 0 && s.startupComplete {
		setErr(err, "variable %q may only be set at startup", def.Name)
		return ErrInvalid | InvValidator, false
	}
	return Success, true
}

// runValidator invokes the definition's validator against a candidate value.
func (s *Set) runValidator(def *Def, value any, err *strings.Builder) Result {
	if def == nil || def.Validator == nil {
		return Success
	}
	if verr := def.Validator(def, value); verr != nil {
		setErr(err, "%s", verr)
		return ErrInvalid | InvValidator
	}
	return Success
}

// promote adds the governing type bits to an inherited element once a local
// override has been written.
func promote(he *HashElem) {
	if he.IsInherited() && he.typ.Base() == TypeUnknown {
		he.typ |= he.self().Type.Base()
	}
}

// demote drops the local type bits from an inherited element so that reads
// fall through to the parent again.
func demote(he *HashElem) {
	if he.IsInherited() {
		he.typ = FlagInherited
		he.inherit.slot = Slot{}
	}
}

// HeStringSet sets an element from a string.
func (s *Set) HeStringSet(he *HashElem, value string, err *strings.Builder) Result {
	if he == nil {
		return ErrCode
	}
	if rc, ok := s.gateStartup(he, err); !ok {
		return rc
	}
	def := he.self()
	t := s.typeFor(def.Type)
	if t == nil {
		return ErrCode
	}
	slot := he.writeSlot()
	if he.isPureInherit() {
		// First override: seed the private slot from the parent's view so the
		// no-change test compares against the effective value.
		target, _ := he.readTarget()
		if v, rc := t.NativeGet(s, target.writeSlot(), def); rc.IsSuccess() {
			slot.val = v
		}
	}
	rc := t.StringSet(s, slot, def, value, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		promote(he)
	}
	return rc
}

// HeStringGet renders an element's effective value.
func (s *Set) HeStringGet(he *HashElem, out *strings.Builder) Result {
	if he == nil {
		return ErrCode
	}
	target, inherited := he.readTarget()
	def := target.self()
	t := s.typeFor(def.Type)
	if t == nil {
		return ErrCode
	}
	rc := t.StringGet(s, target.writeSlot(), def, out)
	if inherited && rc.IsSuccess() {
		rc |= SucInherited
	}
	return rc
}

// HeNativeSet sets an element from a native value.
func (s *Set) HeNativeSet(he *HashElem, value any, err *strings.Builder) Result {
	if he == nil {
		return ErrCode
	}
	if rc, ok := s.gateStartup(he, err); !ok {
		return rc
	}
	def := he.self()
	t := s.typeFor(def.Type)
	if t == nil {
		return ErrCode
	}
	rc := t.NativeSet(s, he.writeSlot(), def, value, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		promote(he)
	}
	return rc
}

// HeNativeGet returns an element's effective native value.
func (s *Set) HeNativeGet(he *HashElem) (any, Result) {
	if he == nil {
		return nil, ErrCode
	}
	target, inherited := he.readTarget()
	def := target.self()
	t := s.typeFor(def.Type)
	if t == nil {
		return nil, ErrCode
	}
	v, rc := t.NativeGet(s, target.writeSlot(), def)
	if inherited && rc.IsSuccess() {
		rc |= SucInherited
	}
	return v, rc
}

// HeReset restores an element to its initial value. Resetting an inherited
// element discards its local override so that reads fall through again.
func (s *Set) HeReset(he *HashElem, err *strings.Builder) Result {
	if he == nil {
		return ErrCode
	}
	if he.IsInherited() {
		if he.isPureInherit() {
			return Success | SucNoChange
		}
		demote(he)
		return Success
	}
	def := he.def
	t := s.typeFor(def.Type)
	if t == nil {
		return ErrCode
	}
	return t.Reset(s, &def.slot, def, err)
}

// HeDelete removes an element. Only user-defined (myvar) variables may be
// deleted.
func (s *Set) HeDelete(he *HashElem, err *strings.Builder) Result {
	if he == nil {
		return ErrCode
	}
	if !he.typ.Is(TypeMyVar) {
		setErr(err, "variable %q may not be deleted", he.name)
		return ErrInvalid | InvNotImpl
	}
	delete(s.elems, he.name)
	return Success
}

// HeStringPlusEquals applies the type's additive mutation.
func (s *Set) HeStringPlusEquals(he *HashElem, value string, err *strings.Builder) Result {
	if he == nil {
		return ErrCode
	}
	if rc, ok := s.gateStartup(he, err); !ok {
		return rc
	}
	def := he.self()
	t := s.typeFor(def.Type)
	pt, ok := t.(PlusType)
	if !ok {
		setErr(err, "operation += not supported for %s type", def.Type.Base())
		return ErrInvalid | InvNotImpl
	}
	if he.isPureInherit() {
		target, _ := he.readTarget()
		if v, rc := t.NativeGet(s, target.writeSlot(), def); rc.IsSuccess() {
			he.writeSlot().val = v
		}
	}
	rc := pt.StringPlusEquals(s, he.writeSlot(), def, value, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		promote(he)
	}
	return rc
}

// HeStringMinusEquals applies the type's subtractive mutation.
func (s *Set) HeStringMinusEquals(he *HashElem, value string, err *strings.Builder) Result {
	if he == nil {
		return ErrCode
	}
	if rc, ok := s.gateStartup(he, err); !ok {
		return rc
	}
	def := he.self()
	t := s.typeFor(def.Type)
	mt, ok := t.(MinusType)
	if !ok {
		setErr(err, "operation -= not supported for %s type", def.Type.Base())
		return ErrInvalid | InvNotImpl
	}
	if he.isPureInherit() {
		target, _ := he.readTarget()
		if v, rc := t.NativeGet(s, target.writeSlot(), def); rc.IsSuccess() {
			he.writeSlot().val = v
		}
	}
	rc := mt.StringMinusEquals(s, he.writeSlot(), def, value, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		promote(he)
	}
	return rc
}

// HeInitialSet replaces an element's recorded initial value.
func (s *Set) HeInitialSet(he *HashElem, value string, err *strings.Builder) Result {
	if he == nil || he.IsInherited() {
		return ErrCode
	}
	def := he.def
	t := s.typeFor(def.Type)
	if t == nil {
		return ErrCode
	}
	scratch := Slot{}
	rc := t.StringSet(s, &scratch, def, value, err)
	if !rc.IsSuccess() {
		return rc
	}
	def.Initial = scratch.val
	def.initialSet = true
	return Success
}

// HeInitialGet renders an element's initial value.
func (s *Set) HeInitialGet(he *HashElem, out *strings.Builder) Result {
	if he == nil || he.IsInherited() {
		return ErrCode
	}
	def := he.def
	t := s.typeFor(def.Type)
	if t == nil {
		return ErrCode
	}
	scratch := Slot{val: def.Initial}
	return t.StringGet(s, &scratch, def, out)
}

// HeHasBeenSet reports whether the element's value differs from its initial.
func (s *Set) HeHasBeenSet(he *HashElem) bool {
	if he == nil {
		return false
	}
	if he.IsInherited() {
		return !he.isPureInherit()
	}
	def := he.def
	t := s.typeFor(def.Type)
	if t == nil {
		return false
	}
	return t.HasBeenSet(s, &def.slot, def)
}

package config

import (
	"strings"
)

// EventKind classifies a config change notification.
type EventKind int

const (
	// EventSet fires after a successful value-changing set.
	EventSet EventKind = iota
	// EventReset fires after a reset to the initial value.
	EventReset
	// EventDeleted fires after a user-defined variable is removed.
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventSet:
		return "set"
	case EventReset:
		return "reset"
	case EventDeleted:
		return "deleted"
	}
	return "unknown"
}

// Event describes one config mutation. Name is relative to the subset the
// mutation happened in.
type Event struct {
	Kind EventKind
	Name string
	Elem *HashElem
}

// Observer receives config change events. An observer must not mutate the
// variable it is being notified about.
type Observer func(Event)

// Subset is a scoped view of a Set. Subsets form a tree; a child subset
// prefixes its variables with "scope:" and falls back to its parent for any
// variable it has not overridden.
type Subset struct {
	parent    *Subset
	set       *Set
	scope     string
	observers []Observer
}

// NewSubset creates a scoped view. A nil parent makes this the root view
// directly over cs; scope may be empty for the root.
func NewSubset(parent *Subset, cs *Set, scope string) *Subset {
	if parent != nil {
		cs = parent.set
	}
	return &Subset{parent: parent, set: cs, scope: scope}
}

// Set returns the underlying ConfigSet.
func (sub *Subset) Set() *Set { return sub.set }

// Parent returns the enclosing subset, or nil at the root.
func (sub *Subset) Parent() *Subset { return sub.parent }

// Scope returns the subset's name prefix.
func (sub *Subset) Scope() string { return sub.scope }

// fullName produces the scoped element name for this subset.
func (sub *Subset) fullName(name string) string {
	if sub == nil {
		return name
	}
	parts := []string{name}
	for s := sub; s != nil; s = s.parent {
		if s.scope != "" {
			parts = append(parts, s.scope)
		}
	}
	// parts are innermost-first
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(parts[i])
	}
	return b.String()
}

// Observe registers an observer on this subset. Events raised in this subset
// or any descendant are delivered to it.
func (sub *Subset) Observe(obs Observer) {
	sub.observers = append(sub.observers, obs)
}

// notify delivers an event to this subset's observers and bubbles it up the
// ancestor chain, child first.
func (sub *Subset) notify(ev Event) {
	for s := sub; s != nil; s = s.parent {
		for _, obs := range s.observers {
			obs(ev)
		}
	}
}

// Lookup resolves name in this subset, walking up the scope chain. The
// returned element may live in an ancestor scope.
func (sub *Subset) Lookup(name string) *HashElem {
	for s := sub; s != nil; s = s.parent {
		if he := s.set.Lookup(s.fullName(name)); he != nil {
			return he
		}
	}
	return sub.set.Lookup(name)
}

// CreateInheritance guarantees that a scoped element for name exists in this
// subset, creating elements for every ancestor scope first. It returns the
// innermost element.
func (sub *Subset) CreateInheritance(name string) *HashElem {
	if sub == nil {
		return nil
	}
	var parentElem *HashElem
	if sub.parent != nil {
		parentElem = sub.parent.CreateInheritance(name)
	} else {
		parentElem = sub.set.Lookup(name)
	}
	if parentElem == nil {
		return nil
	}
	if sub.scope == "" {
		return parentElem
	}
	return sub.set.createInheritance(parentElem, sub.fullName(name))
}

// lookupForWrite resolves name to the element writes must target, creating
// the inheritance chain for scoped subsets on demand.
func (sub *Subset) lookupForWrite(name string) *HashElem {
	if sub.scope == "" && sub.parent == nil {
		return sub.set.Lookup(name)
	}
	return sub.CreateInheritance(name)
}

// SetString sets a variable from a string, creating scoped inheritance as
// needed, and notifies observers unless the value was unchanged.
func (sub *Subset) SetString(name, value string, err *strings.Builder) Result {
	he := sub.lookupForWrite(name)
	if he == nil {
		setErr(err, "unknown variable %q", name)
		return ErrUnknown
	}
	rc := sub.set.HeStringSet(he, value, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		sub.notify(Event{Kind: EventSet, Name: name, Elem: he})
	}
	return rc
}

// GetString renders a variable's effective value.
func (sub *Subset) GetString(name string, out *strings.Builder) Result {
	he := sub.Lookup(name)
	if he == nil {
		return ErrUnknown
	}
	return sub.set.HeStringGet(he, out)
}

// SetNative sets a variable from a native value.
func (sub *Subset) SetNative(name string, value any, err *strings.Builder) Result {
	he := sub.lookupForWrite(name)
	if he == nil {
		setErr(err, "unknown variable %q", name)
		return ErrUnknown
	}
	rc := sub.set.HeNativeSet(he, value, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		sub.notify(Event{Kind: EventSet, Name: name, Elem: he})
	}
	return rc
}

// GetNative returns a variable's effective native value.
func (sub *Subset) GetNative(name string) (any, Result) {
	he := sub.Lookup(name)
	if he == nil {
		return nil, ErrUnknown
	}
	return sub.set.HeNativeGet(he)
}

// Reset restores a variable to its initial value and notifies observers.
func (sub *Subset) Reset(name string, err *strings.Builder) Result {
	he := sub.Lookup(name)
	if he == nil {
		setErr(err, "unknown variable %q", name)
		return ErrUnknown
	}
	rc := sub.set.HeReset(he, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		sub.notify(Event{Kind: EventReset, Name: name, Elem: he})
	}
	return rc
}

// Delete removes a user-defined variable and notifies observers.
func (sub *Subset) Delete(name string, err *strings.Builder) Result {
	he := sub.Lookup(name)
	if he == nil {
		setErr(err, "unknown variable %q", name)
		return ErrUnknown
	}
	rc := sub.set.HeDelete(he, err)
	if rc.IsSuccess() {
		sub.notify(Event{Kind: EventDeleted, Name: name, Elem: he})
	}
	return rc
}

// PlusEquals applies the type's additive mutation and notifies observers.
func (sub *Subset) PlusEquals(name, value string, err *strings.Builder) Result {
	he := sub.lookupForWrite(name)
	if he == nil {
		setErr(err, "unknown variable %q", name)
		return ErrUnknown
	}
	rc := sub.set.HeStringPlusEquals(he, value, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		sub.notify(Event{Kind: EventSet, Name: name, Elem: he})
	}
	return rc
}

// MinusEquals applies the type's subtractive mutation and notifies observers.
func (sub *Subset) MinusEquals(name, value string, err *strings.Builder) Result {
	he := sub.lookupForWrite(name)
	if he == nil {
		setErr(err, "unknown variable %q", name)
		return ErrUnknown
	}
	rc := sub.set.HeStringMinusEquals(he, value, err)
	if rc.IsSuccess() && !rc.Has(SucNoChange) {
		sub.notify(Event{Kind: EventSet, Name: name, Elem: he})
	}
	return rc
}

// Typed accessors. These never return ambiguous sentinels: a missing or
// mistyped variable yields the Go zero value and a non-success Result.

// Bool returns a boolean variable.
func (sub *Subset) Bool(name string) bool {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Str returns a string-like variable (string, command, path, mailbox).
func (sub *Subset) Str(name string) string {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Number returns a number or long variable.
func (sub *Subset) Number(name string) int64 {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// Quad returns a quad-option variable.
func (sub *Subset) Quad(name string) QuadValue {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return QuadNo
	}
	q, _ := v.(QuadValue)
	return q
}

// Slist returns a string-list variable. The result may be nil.
func (sub *Subset) Slist(name string) *Slist {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return nil
	}
	sl, _ := v.(*Slist)
	return sl
}

// Regex returns a regex variable. The result may be nil.
func (sub *Subset) Regex(name string) *Regex {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return nil
	}
	rx, _ := v.(*Regex)
	return rx
}

// Enum returns an enumeration variable's numeric value.
func (sub *Subset) Enum(name string) int {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return 0
	}
	n, _ := v.(int)
	return n
}

// Sort returns a sort variable's numeric value (including flag bits).
func (sub *Subset) Sort(name string) int {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return 0
	}
	n, _ := v.(int)
	return n
}

// Mbtable returns a multibyte-character-table variable. May be nil.
func (sub *Subset) Mbtable(name string) *MbTable {
	v, rc := sub.GetNative(name)
	if !rc.IsSuccess() {
		return nil
	}
	t, _ := v.(*MbTable)
	return t
}

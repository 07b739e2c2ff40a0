// Package dri defines the declaration reference identifier: the canonical,
// serializable key that addresses one documented declaration.
//
// A DRI is a plain value. It is created once per declaration during analysis
// and is used as a map key (via Key) for the rest of the pipeline.
package dri

import (
	"slices"
	"strings"
)

// EnumEntryKey marks a DRI that points at an enum entry.
const EnumEntryKey = "EnumEntry"

// DRI identifies a declaration by package, nested class path and callable.
// ClassNames is the dot-joined path of nested class simple names and is empty
// for package-level declarations.
type DRI struct {
	PackageName string
	ClassNames  string
	Callable    *Callable
	Target      Target
	Extra       Extra
}

// TargetKind discriminates what part of a declaration a DRI points at.
type TargetKind int

const (
	Declaration TargetKind = iota
	CallableParameter
	GenericParameter
)

// Target is the pointed-at location within a declaration. Index is only
// meaningful for parameter targets and is ignored otherwise.
type Target struct {
	Kind  TargetKind
	Index int
}

// normalized maps every non-parameter target to the zero Target.
func (t Target) normalized() Target {
	switch t.Kind {
	case CallableParameter, GenericParameter:
		return t
	}
	return Target{}
}

// ExtraEntry is one auxiliary flag attached to a DRI.
type ExtraEntry struct {
	Key   string
	Value string
}

// Extra is an ordered key/value bag. Order is significant for equality.
type Extra []ExtraEntry

// Get returns the value stored under key.
func (e Extra) Get(key string) (string, bool) {
	for _, entry := range e {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	return "", false
}

// With returns a copy of e with key set to value. An existing key keeps its
// position.
func (e Extra) With(key, value string) Extra {
	out := slices.Clone(e)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, ExtraEntry{Key: key, Value: value})
}

// Callable is the function or property part of a DRI.
type Callable struct {
	Name     string
	Receiver *TypeRef
	Params   []TypeRef
}

// ParamList renders the parameter types as "(T1,T2)".
func (c *Callable) ParamList() string {
	parts := make([]string, len(c.Params))
	for i, p := range c.Params {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Signature renders the callable as "name(T1,T2)".
func (c *Callable) Signature() string {
	return c.Name + c.ParamList()
}

func (c *Callable) equal(o *Callable) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Name != o.Name || len(c.Params) != len(o.Params) {
		return false
	}
	if (c.Receiver == nil) != (o.Receiver == nil) {
		return false
	}
	if c.Receiver != nil && !c.Receiver.Equal(*o.Receiver) {
		return false
	}
	for i := range c.Params {
		if !c.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

// Package returns the DRI of a package.
func Package(name string) DRI {
	return DRI{PackageName: name}
}

// Class returns the DRI of a (possibly nested) class.
func Class(pkg, classNames string) DRI {
	return DRI{PackageName: pkg, ClassNames: classNames}
}

// WithClass returns d with a nested class appended to its class path.
// The callable part is dropped.
func (d DRI) WithClass(name string) DRI {
	out := DRI{PackageName: d.PackageName, ClassNames: name}
	if d.ClassNames != "" {
		out.ClassNames = d.ClassNames + "." + name
	}
	return out
}

// WithCallable returns d pointing at the given callable.
func (d DRI) WithCallable(name string, params ...TypeRef) DRI {
	d.Callable = &Callable{Name: name, Params: params}
	d.Target = Target{}
	return d
}

// WithExtra returns d with an extra flag set.
func (d DRI) WithExtra(key, value string) DRI {
	d.Extra = d.Extra.With(key, value)
	return d
}

// AsEnumEntry marks d as an enum entry.
func (d DRI) AsEnumEntry() DRI {
	return d.WithExtra(EnumEntryKey, "true")
}

// IsEnumEntry reports whether d carries the enum entry flag.
func (d DRI) IsEnumEntry() bool {
	_, ok := d.Extra.Get(EnumEntryKey)
	return ok
}

// IsPackage reports whether d addresses a package itself.
func (d DRI) IsPackage() bool {
	return d.ClassNames == "" && d.Callable == nil
}

// ClassPath splits ClassNames into its nested simple names.
func (d DRI) ClassPath() []string {
	if d.ClassNames == "" {
		return nil
	}
	return strings.Split(d.ClassNames, ".")
}

// Parent returns the enclosing declaration: the class or package for a
// callable, the outer class for a nested class, the package for a top-level
// class. A package has no parent.
func (d DRI) Parent() (DRI, bool) {
	switch {
	case d.Callable != nil:
		return DRI{PackageName: d.PackageName, ClassNames: d.ClassNames}, true
	case d.ClassNames != "":
		i := strings.LastIndexByte(d.ClassNames, '.')
		if i < 0 {
			return Package(d.PackageName), true
		}
		return Class(d.PackageName, d.ClassNames[:i]), true
	default:
		return DRI{}, false
	}
}

// FullyQualifiedName joins package, class path and callable name with dots,
// skipping empty parts.
func (d DRI) FullyQualifiedName() string {
	parts := make([]string, 0, 3)
	if d.PackageName != "" {
		parts = append(parts, d.PackageName)
	}
	if d.ClassNames != "" {
		parts = append(parts, d.ClassNames)
	}
	if d.Callable != nil {
		parts = append(parts, d.Callable.Name)
	}
	return strings.Join(parts, ".")
}

// Equal reports structural equality over every field. Targets compare by
// their serialized form, so the Index of a declaration target is ignored.
func (d DRI) Equal(o DRI) bool {
	if d.PackageName != o.PackageName || d.ClassNames != o.ClassNames || d.Target.normalized() != o.Target.normalized() {
		return false
	}
	if !d.Callable.equal(o.Callable) {
		return false
	}
	if len(d.Extra) != len(o.Extra) {
		return false
	}
	for i := range d.Extra {
		if d.Extra[i] != o.Extra[i] {
			return false
		}
	}
	return true
}

// Key is the serialized form of d; two DRIs are Equal iff their keys match.
func (d DRI) Key() string {
	return d.String()
}

// Compare orders DRIs by key.
func Compare(a, b DRI) int {
	return strings.Compare(a.Key(), b.Key())
}

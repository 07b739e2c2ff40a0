package dri

import "strings"

// TypeKind distinguishes the shapes a parameter type reference can take.
type TypeKind int

const (
	Constructor TypeKind = iota
	Param
	Star
)

// TypeRef is an erased reference to a parameter or receiver type.
// Constructor and Param references must have a non-empty Name.
type TypeRef struct {
	Kind     TypeKind
	Name     string
	Args     []TypeRef
	Nullable bool
}

// Type returns a type constructor reference such as kotlin.collections.List<T>.
func Type(name string, args ...TypeRef) TypeRef {
	return TypeRef{Kind: Constructor, Name: name, Args: args}
}

// TypeParam returns a reference to a generic type parameter.
func TypeParam(name string) TypeRef {
	return TypeRef{Kind: Param, Name: name}
}

// StarType returns the star projection.
func StarType() TypeRef {
	return TypeRef{Kind: Star}
}

// OrNull returns t marked nullable.
func (t TypeRef) OrNull() TypeRef {
	t.Nullable = true
	return t
}

// String renders t for humans: kotlin.collections.List<kotlin.String>?
func (t TypeRef) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t TypeRef) write(b *strings.Builder) {
	switch t.Kind {
	case Star:
		b.WriteByte('*')
	default:
		b.WriteString(t.Name)
		if len(t.Args) > 0 {
			b.WriteByte('<')
			for i, a := range t.Args {
				if i > 0 {
					b.WriteByte(',')
				}
				a.write(b)
			}
			b.WriteByte('>')
		}
	}
	if t.Nullable {
		b.WriteByte('?')
	}
}

// Erased returns the raw type name without arguments or nullability, as
// Javadoc renders parameter types in anchors.
func (t TypeRef) Erased() string {
	if t.Kind == Star {
		return "*"
	}
	return t.Name
}

// Equal reports structural equality.
func (t TypeRef) Equal(o TypeRef) bool {
	if t.Kind != o.Kind || t.Name != o.Name || t.Nullable != o.Nullable || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

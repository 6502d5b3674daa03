// Package classfile reads the parts of JVM class files the graph scanners need:
// names, hierarchy, annotations, and the invocations and field accesses made
// by every method body.
package classfile

import (
	"errors"
	"strings"
)

var (
	ErrBadMagic  = errors.New("not a class file")
	ErrTruncated = errors.New("truncated class file")
	ErrMalformed = errors.New("malformed class file")
)

// Access flags shared by classes, fields and methods.
const (
	AccPublic     uint16 = 0x0001
	AccPrivate    uint16 = 0x0002
	AccProtected  uint16 = 0x0004
	AccStatic     uint16 = 0x0008
	AccFinal      uint16 = 0x0010
	AccSuper      uint16 = 0x0020
	AccBridge     uint16 = 0x0040
	AccInterface  uint16 = 0x0200
	AccAbstract   uint16 = 0x0400
	AccSynthetic  uint16 = 0x1000
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
)

const (
	ConstructorName = "<init>"
	StaticInitName  = "<clinit>"
)

// Class is a parsed class file. Type names use dotted notation (a.b.Outer$Inner).
type Class struct {
	Name         string
	SuperName    string
	Interfaces   []string
	AccessFlags  uint16
	MajorVersion uint16
	SourceFile   string
	Annotations  []Annotation
	Fields       []Field
	Methods      []Method
}

type Field struct {
	Name        string
	Descriptor  string
	AccessFlags uint16
	Annotations []Annotation
}

type Method struct {
	Name          string
	Descriptor    string
	AccessFlags   uint16
	Annotations   []Annotation
	Invocations   []Invocation
	FieldAccesses []FieldAccess
}

// InvokeKind mirrors the invoke instruction that produced an Invocation.
type InvokeKind uint8

const (
	InvokeVirtual InvokeKind = iota
	InvokeSpecial
	InvokeStatic
	InvokeInterface
	// InvokeDynamic is a lambda or method reference resolved to its implementation method.
	InvokeDynamic
)

func (k InvokeKind) String() string {
	switch k {
	case InvokeVirtual:
		return "invokevirtual"
	case InvokeSpecial:
		return "invokespecial"
	case InvokeStatic:
		return "invokestatic"
	case InvokeInterface:
		return "invokeinterface"
	case InvokeDynamic:
		return "invokedynamic"
	default:
		return "unknown"
	}
}

type Invocation struct {
	Kind       InvokeKind
	Owner      string
	Name       string
	Descriptor string
}

// Action renders the invoked method the way Method.Action does.
func (i Invocation) Action() string {
	return Action(i.Name, i.Descriptor)
}

type FieldAccess struct {
	Put    bool
	Static bool
	Owner  string
	Name   string
}

// Annotation is a runtime or class retained annotation.
type Annotation struct {
	Type     string
	Elements map[string]ElementValue
	Visible  bool
}

// SimpleName is the type name without its package.
func (a Annotation) SimpleName() string {
	return SimpleName(a.Type)
}

// Value returns the element named name ("value" for single-element annotations).
func (a Annotation) Value(name string) (ElementValue, bool) {
	v, ok := a.Elements[name]
	return v, ok
}

// ElementValue is an annotation element. Tag follows the class file
// encoding: s B C D F I J S Z for constants, e enum, c class, @ annotation, [ array.
type ElementValue struct {
	Tag        byte
	Const      any
	EnumType   string
	EnumName   string
	Class      string
	Annotation *Annotation
	Values     []ElementValue
}

// Classes flattens class literals found in v, including inside arrays.
func (v ElementValue) Classes() []string {
	switch v.Tag {
	case 'c':
		return []string{v.Class}
	case '[':
		var out []string
		for _, e := range v.Values {
			out = append(out, e.Classes()...)
		}
		return out
	}
	return nil
}

// Strings flattens string constants found in v, including inside arrays.
func (v ElementValue) Strings() []string {
	switch v.Tag {
	case 's':
		if s, ok := v.Const.(string); ok {
			return []string{s}
		}
	case '[':
		var out []string
		for _, e := range v.Values {
			out = append(out, e.Strings()...)
		}
		return out
	}
	return nil
}

func (c *Class) IsInterface() bool  { return c.AccessFlags&AccInterface != 0 }
func (c *Class) IsAbstract() bool   { return c.AccessFlags&AccAbstract != 0 }
func (c *Class) IsAnnotation() bool { return c.AccessFlags&AccAnnotation != 0 }
func (c *Class) IsPublic() bool     { return c.AccessFlags&AccPublic != 0 }

// Package is the dotted package of the class, empty for the default package.
func (c *Class) Package() string {
	if i := strings.LastIndexByte(c.Name, '.'); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// FindAnnotation returns the first class annotation matching one of names.
func (c *Class) FindAnnotation(names ...string) (Annotation, bool) {
	return FindAnnotation(c.Annotations, names...)
}

func (m *Method) IsStatic() bool      { return m.AccessFlags&AccStatic != 0 }
func (m *Method) IsAbstract() bool    { return m.AccessFlags&AccAbstract != 0 }
func (m *Method) IsPublic() bool      { return m.AccessFlags&AccPublic != 0 }
func (m *Method) IsPrivate() bool     { return m.AccessFlags&AccPrivate != 0 }
func (m *Method) IsSynthetic() bool   { return m.AccessFlags&(AccSynthetic|AccBridge) != 0 }
func (m *Method) IsConstructor() bool { return m.Name == ConstructorName }
func (m *Method) IsStaticInit() bool  { return m.Name == StaticInitName }

// Action renders the method as name(type, type) in Java source notation.
func (m *Method) Action() string {
	return Action(m.Name, m.Descriptor)
}

// FindAnnotation returns the first method annotation matching one of names.
func (m *Method) FindAnnotation(names ...string) (Annotation, bool) {
	return FindAnnotation(m.Annotations, names...)
}

// FindAnnotation matches annotations by fully qualified name, or by simple
// name when a requested name has no package.
func FindAnnotation(annotations []Annotation, names ...string) (Annotation, bool) {
	for _, a := range annotations {
		for _, n := range names {
			if a.Type == n {
				return a, true
			}
			if !strings.Contains(n, ".") && a.SimpleName() == n {
				return a, true
			}
		}
	}
	return Annotation{}, false
}

// SimpleName strips the package and any enclosing class from a dotted type name.
func SimpleName(name string) string {
	if i := strings.LastIndexAny(name, ".$"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// DottedName converts an internal name (a/b/C) to dotted form.
func DottedName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

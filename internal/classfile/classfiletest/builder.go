// Package classfiletest assembles minimal class files for tests.
//
// The output is structurally valid for the parser in package classfile but
// carries no stack map frames, so it will not pass JVM verification.
package classfiletest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"strings"

	"testimpact/internal/classfile"
)

// ClassRef is a class literal element value.
type ClassRef string

// Enum is an enum constant element value.
type Enum struct {
	Type string
	Name string
}

// Annotation describes an annotation to attach. Values holds element values:
// string, int, int64, bool, float64, ClassRef, Enum, Annotation or []any.
type Annotation struct {
	Type      string
	Invisible bool
	Values    map[string]any
}

// Ann is shorthand for a runtime-visible annotation.
func Ann(typ string, kv ...any) Annotation {
	a := Annotation{Type: typ}
	if len(kv) > 0 {
		a.Values = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			a.Values[kv[i].(string)] = kv[i+1]
		}
	}
	return a
}

type field struct {
	name, desc  string
	access      uint16
	annotations []Annotation
}

type bootstrap struct {
	ref  uint16
	args []uint16
}

// Builder accumulates a class definition.
type Builder struct {
	name        string
	super       string
	interfaces  []string
	access      uint16
	sourceFile  string
	annotations []Annotation
	fields      []field
	methods     []*MethodBuilder
	pool        pool
	bootstraps  []bootstrap
}

// New starts a public class extending java.lang.Object. Names are dotted.
func New(name string) *Builder {
	return &Builder{
		name:   name,
		super:  "java.lang.Object",
		access: classfile.AccPublic | classfile.AccSuper,
	}
}

func (b *Builder) Super(name string) *Builder {
	b.super = name
	return b
}

func (b *Builder) Implements(names ...string) *Builder {
	b.interfaces = append(b.interfaces, names...)
	return b
}

// Access replaces the class access flags.
func (b *Builder) Access(flags uint16) *Builder {
	b.access = flags
	return b
}

func (b *Builder) Interface() *Builder {
	b.access = classfile.AccPublic | classfile.AccInterface | classfile.AccAbstract
	return b
}

func (b *Builder) SourceFile(name string) *Builder {
	b.sourceFile = name
	return b
}

func (b *Builder) Annotate(anns ...Annotation) *Builder {
	b.annotations = append(b.annotations, anns...)
	return b
}

func (b *Builder) Field(name, desc string, access uint16, anns ...Annotation) *Builder {
	b.fields = append(b.fields, field{name: name, desc: desc, access: access, annotations: anns})
	return b
}

// Method adds a public method and returns it for further configuration.
func (b *Builder) Method(name, desc string) *MethodBuilder {
	m := &MethodBuilder{class: b, name: name, desc: desc, access: classfile.AccPublic}
	b.methods = append(b.methods, m)
	return m
}

// MethodBuilder emits a straight-line body ending in return.
type MethodBuilder struct {
	class       *Builder
	name, desc  string
	access      uint16
	annotations []Annotation
	abstract    bool
	code        bytes.Buffer
}

func (m *MethodBuilder) Access(flags uint16) *MethodBuilder {
	m.access = flags
	return m
}

// Abstract marks the method abstract and omits its Code attribute.
func (m *MethodBuilder) Abstract() *MethodBuilder {
	m.access |= classfile.AccAbstract
	m.abstract = true
	return m
}

func (m *MethodBuilder) Annotate(anns ...Annotation) *MethodBuilder {
	m.annotations = append(m.annotations, anns...)
	return m
}

// Call emits an invoke instruction of the given kind. InvokeDynamic is not
// accepted here; use Lambda.
func (m *MethodBuilder) Call(kind classfile.InvokeKind, owner, name, desc string) *MethodBuilder {
	p := &m.class.pool
	switch kind {
	case classfile.InvokeVirtual:
		m.op(0xb6, p.methodRef(owner, name, desc, false))
	case classfile.InvokeSpecial:
		m.op(0xb7, p.methodRef(owner, name, desc, false))
	case classfile.InvokeStatic:
		m.op(0xb8, p.methodRef(owner, name, desc, false))
	case classfile.InvokeInterface:
		m.op(0xb9, p.methodRef(owner, name, desc, true))
		m.code.Write([]byte{1, 0})
	default:
		panic(fmt.Sprintf("classfiletest: unsupported invoke kind %s", kind))
	}
	return m
}

// GetField emits getfield or getstatic.
func (m *MethodBuilder) GetField(owner, name, desc string, static bool) *MethodBuilder {
	op := byte(0xb4)
	if static {
		op = 0xb2
	}
	m.op(op, m.class.pool.fieldRef(owner, name, desc))
	return m
}

// PutField emits putfield or putstatic.
func (m *MethodBuilder) PutField(owner, name, desc string, static bool) *MethodBuilder {
	op := byte(0xb5)
	if static {
		op = 0xb3
	}
	m.op(op, m.class.pool.fieldRef(owner, name, desc))
	return m
}

// Lambda emits an invokedynamic bootstrapped by LambdaMetafactory whose
// implementation is owner.name desc.
func (m *MethodBuilder) Lambda(owner, name, desc string) *MethodBuilder {
	p := &m.class.pool
	meta := p.methodHandle(6, p.methodRef("java.lang.invoke.LambdaMetafactory", "metafactory",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;"+
			"Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)"+
			"Ljava/lang/invoke/CallSite;", false))
	impl := p.methodHandle(6, p.methodRef(owner, name, desc, false))
	sam := p.methodType("()V")
	m.dynamic(meta, []uint16{sam, impl, sam}, "run", "()Ljava/lang/Runnable;")
	return m
}

// StringConcat emits an invokedynamic bootstrapped by StringConcatFactory.
func (m *MethodBuilder) StringConcat() *MethodBuilder {
	p := &m.class.pool
	bsm := p.methodHandle(6, p.methodRef("java.lang.invoke.StringConcatFactory", "makeConcatWithConstants",
		"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;"+
			"Ljava/lang/String;[Ljava/lang/Object;)Ljava/lang/invoke/CallSite;", false))
	m.dynamic(bsm, []uint16{p.str("\u0001!")}, "makeConcatWithConstants", "(Ljava/lang/String;)Ljava/lang/String;")
	return m
}

// TableSwitch emits a tableswitch with cases entries, exercising alignment padding.
func (m *MethodBuilder) TableSwitch(cases int) *MethodBuilder {
	m.code.WriteByte(0x03) // iconst_0
	m.code.WriteByte(0xaa)
	for m.code.Len()%4 != 0 {
		m.code.WriteByte(0)
	}
	m.u4(0)
	m.u4(0)
	m.u4(uint32(cases - 1))
	for i := 0; i < cases; i++ {
		m.u4(0)
	}
	return m
}

// WideIinc emits wide iinc, a six byte instruction.
func (m *MethodBuilder) WideIinc() *MethodBuilder {
	m.code.Write([]byte{0xc4, 0x84, 0, 1, 0, 1})
	return m
}

func (m *MethodBuilder) dynamic(bsm uint16, args []uint16, name, desc string) {
	b := m.class
	b.bootstraps = append(b.bootstraps, bootstrap{ref: bsm, args: args})
	idx := b.pool.invokeDynamic(uint16(len(b.bootstraps)-1), name, desc)
	m.op(0xba, idx)
	m.code.Write([]byte{0, 0})
}

func (m *MethodBuilder) op(op byte, idx uint16) {
	m.code.WriteByte(op)
	m.u2(idx)
}

func (m *MethodBuilder) u2(v uint16) { _ = binary.Write(&m.code, binary.BigEndian, v) }
func (m *MethodBuilder) u4(v uint32) { _ = binary.Write(&m.code, binary.BigEndian, v) }

// Bytes encodes the class file.
func (b *Builder) Bytes() []byte {
	p := &b.pool
	var body bytes.Buffer
	w := &writer{&body}

	w.u2(b.access)
	w.u2(p.class(b.name))
	if b.super == "" {
		w.u2(0)
	} else {
		w.u2(p.class(b.super))
	}
	w.u2(uint16(len(b.interfaces)))
	for _, i := range b.interfaces {
		w.u2(p.class(i))
	}

	w.u2(uint16(len(b.fields)))
	for _, f := range b.fields {
		w.u2(f.access)
		w.u2(p.utf8(f.name))
		w.u2(p.utf8(f.desc))
		b.writeAttributes(w, b.annotationAttributes(f.annotations))
	}

	w.u2(uint16(len(b.methods)))
	for _, m := range b.methods {
		w.u2(m.access)
		w.u2(p.utf8(m.name))
		w.u2(p.utf8(m.desc))
		attrs := b.annotationAttributes(m.annotations)
		if !m.abstract {
			var code bytes.Buffer
			cw := &writer{&code}
			cw.u2(8) // max_stack
			cw.u2(8) // max_locals
			insns := append(append([]byte(nil), m.code.Bytes()...), 0xb1)
			cw.u4(uint32(len(insns)))
			code.Write(insns)
			cw.u2(0) // exception table
			cw.u2(0) // attributes
			attrs = append(attrs, attribute{"Code", code.Bytes()})
		}
		b.writeAttributes(w, attrs)
	}

	attrs := b.annotationAttributes(b.annotations)
	if b.sourceFile != "" {
		var sf bytes.Buffer
		(&writer{&sf}).u2(p.utf8(b.sourceFile))
		attrs = append(attrs, attribute{"SourceFile", sf.Bytes()})
	}
	if len(b.bootstraps) > 0 {
		var bm bytes.Buffer
		bw := &writer{&bm}
		bw.u2(uint16(len(b.bootstraps)))
		for _, bs := range b.bootstraps {
			bw.u2(bs.ref)
			bw.u2(uint16(len(bs.args)))
			for _, a := range bs.args {
				bw.u2(a)
			}
		}
		attrs = append(attrs, attribute{"BootstrapMethods", bm.Bytes()})
	}
	b.writeAttributes(w, attrs)

	var out bytes.Buffer
	ow := &writer{&out}
	ow.u4(0xCAFEBABE)
	ow.u2(0)  // minor
	ow.u2(61) // Java 17
	ow.u2(p.count())
	out.Write(p.buf.Bytes())
	out.Write(body.Bytes())
	return out.Bytes()
}

type attribute struct {
	name string
	data []byte
}

func (b *Builder) writeAttributes(w *writer, attrs []attribute) {
	w.u2(uint16(len(attrs)))
	for _, a := range attrs {
		w.u2(b.pool.utf8(a.name))
		w.u4(uint32(len(a.data)))
		w.Write(a.data)
	}
}

func (b *Builder) annotationAttributes(anns []Annotation) []attribute {
	var visible, invisible []Annotation
	for _, a := range anns {
		if a.Invisible {
			invisible = append(invisible, a)
		} else {
			visible = append(visible, a)
		}
	}
	var out []attribute
	if len(visible) > 0 {
		out = append(out, attribute{"RuntimeVisibleAnnotations", b.encodeAnnotations(visible)})
	}
	if len(invisible) > 0 {
		out = append(out, attribute{"RuntimeInvisibleAnnotations", b.encodeAnnotations(invisible)})
	}
	return out
}

func (b *Builder) encodeAnnotations(anns []Annotation) []byte {
	var buf bytes.Buffer
	w := &writer{&buf}
	w.u2(uint16(len(anns)))
	for _, a := range anns {
		b.encodeAnnotation(w, a)
	}
	return buf.Bytes()
}

func (b *Builder) encodeAnnotation(w *writer, a Annotation) {
	w.u2(b.pool.utf8(descriptor(a.Type)))
	w.u2(uint16(len(a.Values)))
	// deterministic order keeps the output stable across runs
	names := make([]string, 0, len(a.Values))
	for k := range a.Values {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		w.u2(b.pool.utf8(k))
		b.encodeValue(w, a.Values[k])
	}
}

func (b *Builder) encodeValue(w *writer, v any) {
	p := &b.pool
	switch v := v.(type) {
	case string:
		w.WriteByte('s')
		w.u2(p.utf8(v))
	case int:
		w.WriteByte('I')
		w.u2(p.integer(uint32(int32(v))))
	case bool:
		w.WriteByte('Z')
		var n uint32
		if v {
			n = 1
		}
		w.u2(p.integer(n))
	case int64:
		w.WriteByte('J')
		w.u2(p.long(uint64(v)))
	case float64:
		w.WriteByte('D')
		w.u2(p.double(math.Float64bits(v)))
	case ClassRef:
		w.WriteByte('c')
		w.u2(p.utf8(descriptor(string(v))))
	case Enum:
		w.WriteByte('e')
		w.u2(p.utf8(descriptor(v.Type)))
		w.u2(p.utf8(v.Name))
	case Annotation:
		w.WriteByte('@')
		b.encodeAnnotation(w, v)
	case []any:
		w.WriteByte('[')
		w.u2(uint16(len(v)))
		for _, e := range v {
			b.encodeValue(w, e)
		}
	case []string:
		w.WriteByte('[')
		w.u2(uint16(len(v)))
		for _, e := range v {
			b.encodeValue(w, e)
		}
	case []ClassRef:
		w.WriteByte('[')
		w.u2(uint16(len(v)))
		for _, e := range v {
			b.encodeValue(w, e)
		}
	default:
		panic(fmt.Sprintf("classfiletest: unsupported element value %T", v))
	}
}

// descriptor turns a dotted class name into a field descriptor.
func descriptor(name string) string {
	return "L" + strings.ReplaceAll(name, ".", "/") + ";"
}

type writer struct{ *bytes.Buffer }

func (w *writer) u2(v uint16) { _ = binary.Write(w.Buffer, binary.BigEndian, v) }
func (w *writer) u4(v uint32) { _ = binary.Write(w.Buffer, binary.BigEndian, v) }

// pool is a deduplicating constant pool writer.
type pool struct {
	buf   bytes.Buffer
	next  uint16
	index map[string]uint16
}

func (p *pool) count() uint16 {
	if p.next == 0 {
		return 1
	}
	return p.next
}

func (p *pool) add(key string, slots uint16, encode func(w *writer)) uint16 {
	if p.index == nil {
		p.index = make(map[string]uint16)
		p.next = 1
	}
	if i, ok := p.index[key]; ok {
		return i
	}
	encode(&writer{&p.buf})
	i := p.next
	p.next += slots
	p.index[key] = i
	return i
}

func (p *pool) utf8(s string) uint16 {
	return p.add("utf8:"+s, 1, func(w *writer) {
		w.WriteByte(1)
		w.u2(uint16(len(s)))
		w.WriteString(s)
	})
}

func (p *pool) integer(v uint32) uint16 {
	return p.add(fmt.Sprintf("int:%d", v), 1, func(w *writer) {
		w.WriteByte(3)
		w.u4(v)
	})
}

func (p *pool) long(v uint64) uint16 {
	return p.add(fmt.Sprintf("long:%d", v), 2, func(w *writer) {
		w.WriteByte(5)
		_ = binary.Write(w.Buffer, binary.BigEndian, v)
	})
}

func (p *pool) double(v uint64) uint16 {
	return p.add(fmt.Sprintf("double:%d", v), 2, func(w *writer) {
		w.WriteByte(6)
		_ = binary.Write(w.Buffer, binary.BigEndian, v)
	})
}

func (p *pool) class(name string) uint16 {
	n := p.utf8(strings.ReplaceAll(name, ".", "/"))
	return p.add("class:"+name, 1, func(w *writer) {
		w.WriteByte(7)
		w.u2(n)
	})
}

func (p *pool) str(s string) uint16 {
	n := p.utf8(s)
	return p.add("string:"+s, 1, func(w *writer) {
		w.WriteByte(8)
		w.u2(n)
	})
}

func (p *pool) nameAndType(name, desc string) uint16 {
	n, d := p.utf8(name), p.utf8(desc)
	return p.add("nat:"+name+":"+desc, 1, func(w *writer) {
		w.WriteByte(12)
		w.u2(n)
		w.u2(d)
	})
}

func (p *pool) fieldRef(owner, name, desc string) uint16 {
	c, nt := p.class(owner), p.nameAndType(name, desc)
	return p.add("field:"+owner+"."+name+":"+desc, 1, func(w *writer) {
		w.WriteByte(9)
		w.u2(c)
		w.u2(nt)
	})
}

func (p *pool) methodRef(owner, name, desc string, iface bool) uint16 {
	c, nt := p.class(owner), p.nameAndType(name, desc)
	tag := byte(10)
	if iface {
		tag = 11
	}
	return p.add(fmt.Sprintf("method%d:%s.%s:%s", tag, owner, name, desc), 1, func(w *writer) {
		w.WriteByte(tag)
		w.u2(c)
		w.u2(nt)
	})
}

func (p *pool) methodHandle(kind byte, ref uint16) uint16 {
	return p.add(fmt.Sprintf("handle:%d:%d", kind, ref), 1, func(w *writer) {
		w.WriteByte(15)
		w.WriteByte(kind)
		w.u2(ref)
	})
}

func (p *pool) methodType(desc string) uint16 {
	d := p.utf8(desc)
	return p.add("mtype:"+desc, 1, func(w *writer) {
		w.WriteByte(16)
		w.u2(d)
	})
}

func (p *pool) invokeDynamic(bsm uint16, name, desc string) uint16 {
	nt := p.nameAndType(name, desc)
	return p.add(fmt.Sprintf("indy:%d:%d", bsm, nt), 1, func(w *writer) {
		w.WriteByte(18)
		w.u2(bsm)
		w.u2(nt)
	})
}

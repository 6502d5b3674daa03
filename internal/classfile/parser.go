package classfile

import (
	"fmt"
	"io"
)

const magic = 0xCAFEBABE

// pendingDynamic is an invokedynamic site waiting for the BootstrapMethods attribute.
type pendingDynamic struct {
	method    int
	bootstrap uint16
}

type bootstrapMethod struct {
	ref  uint16
	args []uint16
}

type parser struct {
	r         *reader
	pool      constPool
	class     *Class
	dynamic   []pendingDynamic
	bootstrap []bootstrapMethod
}

// Parse reads a complete class file from r.
func Parse(r io.Reader) (*Class, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytes(data)
}

// ParseBytes parses an in-memory class file.
func ParseBytes(data []byte) (*Class, error) {
	p := &parser{r: &reader{buf: data}, class: &Class{}}
	if err := p.parse(); err != nil {
		if p.class.Name != "" {
			return nil, fmt.Errorf("class %s: %w", p.class.Name, err)
		}
		return nil, err
	}
	return p.class, nil
}

func (p *parser) parse() error {
	r := p.r
	if r.u4() != magic {
		if r.err != nil {
			return r.err
		}
		return ErrBadMagic
	}
	r.u2() // minor
	p.class.MajorVersion = r.u2()
	if r.err != nil {
		return r.err
	}

	pool, err := readConstPool(r)
	if err != nil {
		return err
	}
	p.pool = pool

	p.class.AccessFlags = r.u2()
	thisIdx, superIdx := r.u2(), r.u2()
	if r.err != nil {
		return r.err
	}
	if p.class.Name, err = pool.className(thisIdx); err != nil {
		return err
	}
	if superIdx != 0 {
		if p.class.SuperName, err = pool.className(superIdx); err != nil {
			return err
		}
	}

	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		name, err := pool.className(r.u2())
		if err != nil {
			return err
		}
		p.class.Interfaces = append(p.class.Interfaces, name)
	}

	if err := p.readFields(); err != nil {
		return err
	}
	if err := p.readMethods(); err != nil {
		return err
	}
	if err := p.readAttributes(r, p.classAttribute); err != nil {
		return err
	}
	if r.err != nil {
		return r.err
	}
	return p.resolveDynamic()
}

func (p *parser) readFields() error {
	n := int(p.r.u2())
	for i := 0; i < n && p.r.err == nil; i++ {
		f := Field{AccessFlags: p.r.u2()}
		var err error
		if f.Name, err = p.pool.utf8(p.r.u2()); err != nil {
			return err
		}
		if f.Descriptor, err = p.pool.utf8(p.r.u2()); err != nil {
			return err
		}
		err = p.readAttributes(p.r, func(name string, body *reader) error {
			anns, ok, err := p.annotationAttribute(name, body)
			if ok {
				f.Annotations = append(f.Annotations, anns...)
			}
			return err
		})
		if err != nil {
			return err
		}
		p.class.Fields = append(p.class.Fields, f)
	}
	return p.r.err
}

func (p *parser) readMethods() error {
	n := int(p.r.u2())
	for i := 0; i < n && p.r.err == nil; i++ {
		m := Method{AccessFlags: p.r.u2()}
		var err error
		if m.Name, err = p.pool.utf8(p.r.u2()); err != nil {
			return err
		}
		if m.Descriptor, err = p.pool.utf8(p.r.u2()); err != nil {
			return err
		}
		index := len(p.class.Methods)
		err = p.readAttributes(p.r, func(name string, body *reader) error {
			if name == "Code" {
				return p.readCode(index, &m, body)
			}
			anns, ok, err := p.annotationAttribute(name, body)
			if ok {
				m.Annotations = append(m.Annotations, anns...)
			}
			return err
		})
		if err != nil {
			return err
		}
		p.class.Methods = append(p.class.Methods, m)
	}
	return p.r.err
}

// readAttributes iterates an attribute table, handing each body to fn as its own reader.
func (p *parser) readAttributes(r *reader, fn func(name string, body *reader) error) error {
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		nameIdx := r.u2()
		length := r.u4()
		if r.err != nil {
			return r.err
		}
		if uint64(length) > uint64(len(r.buf)-r.off) {
			return ErrTruncated
		}
		data := r.bytes(int(length))
		name, err := p.pool.utf8(nameIdx)
		if err != nil {
			return err
		}
		body := &reader{buf: data}
		if err := fn(name, body); err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
		if body.err != nil {
			return fmt.Errorf("attribute %s: %w", name, body.err)
		}
	}
	return r.err
}

func (p *parser) classAttribute(name string, body *reader) error {
	switch name {
	case "SourceFile":
		s, err := p.pool.utf8(body.u2())
		if err != nil {
			return err
		}
		p.class.SourceFile = s
	case "BootstrapMethods":
		n := int(body.u2())
		for i := 0; i < n && body.err == nil; i++ {
			bm := bootstrapMethod{ref: body.u2()}
			argc := int(body.u2())
			for j := 0; j < argc && body.err == nil; j++ {
				bm.args = append(bm.args, body.u2())
			}
			p.bootstrap = append(p.bootstrap, bm)
		}
	default:
		anns, ok, err := p.annotationAttribute(name, body)
		if ok {
			p.class.Annotations = append(p.class.Annotations, anns...)
		}
		return err
	}
	return body.err
}

func (p *parser) annotationAttribute(name string, body *reader) ([]Annotation, bool, error) {
	var visible bool
	switch name {
	case "RuntimeVisibleAnnotations":
		visible = true
	case "RuntimeInvisibleAnnotations":
	default:
		return nil, false, nil
	}
	n := int(body.u2())
	out := make([]Annotation, 0, n)
	for i := 0; i < n && body.err == nil; i++ {
		a, err := p.readAnnotation(body, visible)
		if err != nil {
			return nil, true, err
		}
		out = append(out, a)
	}
	return out, true, body.err
}

func (p *parser) readAnnotation(r *reader, visible bool) (Annotation, error) {
	desc, err := p.pool.utf8(r.u2())
	if err != nil {
		return Annotation{}, err
	}
	typ, err := TypeName(desc)
	if err != nil {
		return Annotation{}, fmt.Errorf("%w: annotation type %q", ErrMalformed, desc)
	}
	a := Annotation{Type: typ, Visible: visible}
	n := int(r.u2())
	if n > 0 {
		a.Elements = make(map[string]ElementValue, n)
	}
	for i := 0; i < n && r.err == nil; i++ {
		name, err := p.pool.utf8(r.u2())
		if err != nil {
			return Annotation{}, err
		}
		v, err := p.readElementValue(r, visible)
		if err != nil {
			return Annotation{}, err
		}
		a.Elements[name] = v
	}
	return a, r.err
}

func (p *parser) readElementValue(r *reader, visible bool) (ElementValue, error) {
	v := ElementValue{Tag: r.u1()}
	if r.err != nil {
		return v, r.err
	}
	switch v.Tag {
	case 's', 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		c, err := p.pool.constant(r.u2(), v.Tag)
		if err != nil {
			return v, err
		}
		v.Const = c
	case 'e':
		typeDesc, err := p.pool.utf8(r.u2())
		if err != nil {
			return v, err
		}
		if v.EnumType, err = TypeName(typeDesc); err != nil {
			return v, err
		}
		if v.EnumName, err = p.pool.utf8(r.u2()); err != nil {
			return v, err
		}
	case 'c':
		desc, err := p.pool.utf8(r.u2())
		if err != nil {
			return v, err
		}
		if v.Class, err = TypeName(desc); err != nil {
			return v, err
		}
	case '@':
		a, err := p.readAnnotation(r, visible)
		if err != nil {
			return v, err
		}
		v.Annotation = &a
	case '[':
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			e, err := p.readElementValue(r, visible)
			if err != nil {
				return v, err
			}
			v.Values = append(v.Values, e)
		}
	default:
		return v, fmt.Errorf("%w: element value tag %q", ErrMalformed, v.Tag)
	}
	return v, r.err
}

// resolveDynamic turns invokedynamic sites bootstrapped by LambdaMetafactory
// into invocations of their implementation method. Other bootstraps (string
// concatenation, records, switch patterns) are dropped.
func (p *parser) resolveDynamic() error {
	for _, d := range p.dynamic {
		if int(d.bootstrap) >= len(p.bootstrap) {
			return fmt.Errorf("%w: bootstrap method %d out of range", ErrMalformed, d.bootstrap)
		}
		bm := p.bootstrap[d.bootstrap]
		owner, name, _, err := p.methodHandle(bm.ref)
		if err != nil {
			return err
		}
		if owner != "java.lang.invoke.LambdaMetafactory" || (name != "metafactory" && name != "altMetafactory") {
			continue
		}
		if len(bm.args) < 2 {
			return fmt.Errorf("%w: lambda bootstrap without implementation handle", ErrMalformed)
		}
		implOwner, implName, implDesc, err := p.methodHandle(bm.args[1])
		if err != nil {
			return err
		}
		m := &p.class.Methods[d.method]
		m.Invocations = append(m.Invocations, Invocation{
			Kind:       InvokeDynamic,
			Owner:      implOwner,
			Name:       implName,
			Descriptor: implDesc,
		})
	}
	return nil
}

func (p *parser) methodHandle(i uint16) (owner, name, desc string, err error) {
	e, err := p.pool.entry(i, tagMethodHandle)
	if err != nil {
		return "", "", "", err
	}
	return p.pool.memberRef(e.b)
}

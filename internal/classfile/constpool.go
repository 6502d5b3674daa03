package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type cpEntry struct {
	tag  uint8
	a, b uint16
	num  uint64
	str  string
}

type constPool []cpEntry

func readConstPool(r *reader) (constPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	pool := make(constPool, count)
	for i := 1; i < count; i++ {
		e := cpEntry{tag: r.u1()}
		switch e.tag {
		case tagUtf8:
			n := int(r.u2())
			e.str = string(r.bytes(n))
		case tagInteger, tagFloat:
			e.num = uint64(r.u4())
		case tagLong, tagDouble:
			e.num = r.u8()
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.a = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			e.a = r.u2()
			e.b = r.u2()
		case tagMethodHandle:
			e.a = uint16(r.u1())
			e.b = r.u2()
		default:
			if r.err != nil {
				return nil, r.err
			}
			return nil, fmt.Errorf("%w: constant pool tag %d at index %d", ErrMalformed, e.tag, i)
		}
		if r.err != nil {
			return nil, r.err
		}
		pool[i] = e
		if e.tag == tagLong || e.tag == tagDouble {
			// eight-byte constants occupy two slots
			i++
		}
	}
	return pool, nil
}

func (p constPool) entry(i uint16, tags ...uint8) (cpEntry, error) {
	if int(i) <= 0 || int(i) >= len(p) {
		return cpEntry{}, fmt.Errorf("%w: constant pool index %d out of range", ErrMalformed, i)
	}
	e := p[i]
	for _, t := range tags {
		if e.tag == t {
			return e, nil
		}
	}
	return cpEntry{}, fmt.Errorf("%w: constant pool index %d has tag %d", ErrMalformed, i, e.tag)
}

func (p constPool) utf8(i uint16) (string, error) {
	e, err := p.entry(i, tagUtf8)
	if err != nil {
		return "", err
	}
	return e.str, nil
}

// className resolves a Class entry to its dotted name.
func (p constPool) className(i uint16) (string, error) {
	e, err := p.entry(i, tagClass)
	if err != nil {
		return "", err
	}
	name, err := p.utf8(e.a)
	if err != nil {
		return "", err
	}
	return DottedName(name), nil
}

func (p constPool) nameAndType(i uint16) (string, string, error) {
	e, err := p.entry(i, tagNameAndType)
	if err != nil {
		return "", "", err
	}
	name, err := p.utf8(e.a)
	if err != nil {
		return "", "", err
	}
	desc, err := p.utf8(e.b)
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// memberRef resolves a Fieldref, Methodref or InterfaceMethodref.
func (p constPool) memberRef(i uint16) (owner, name, desc string, err error) {
	e, err := p.entry(i, tagFieldref, tagMethodref, tagInterfaceMethodref)
	if err != nil {
		return "", "", "", err
	}
	owner, err = p.className(e.a)
	if err != nil {
		return "", "", "", err
	}
	name, desc, err = p.nameAndType(e.b)
	return owner, name, desc, err
}

// constant renders a loadable constant for annotation element values.
func (p constPool) constant(i uint16, tag byte) (any, error) {
	switch tag {
	case 's':
		return p.utf8(i)
	case 'I', 'B', 'C', 'S':
		e, err := p.entry(i, tagInteger)
		if err != nil {
			return nil, err
		}
		return int64(int32(uint32(e.num))), nil
	case 'Z':
		e, err := p.entry(i, tagInteger)
		if err != nil {
			return nil, err
		}
		return e.num != 0, nil
	case 'J':
		e, err := p.entry(i, tagLong)
		if err != nil {
			return nil, err
		}
		return int64(e.num), nil
	case 'F':
		e, err := p.entry(i, tagFloat)
		if err != nil {
			return nil, err
		}
		return float64(math.Float32frombits(uint32(e.num))), nil
	case 'D':
		e, err := p.entry(i, tagDouble)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(e.num), nil
	}
	return nil, fmt.Errorf("%w: element tag %q", ErrMalformed, tag)
}

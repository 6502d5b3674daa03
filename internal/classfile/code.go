package classfile

import (
	"encoding/binary"
	"fmt"
)

// Opcodes the scanner inspects.
const (
	opGetStatic       = 0xb2
	opPutStatic       = 0xb3
	opGetField        = 0xb4
	opPutField        = 0xb5
	opInvokeVirtual   = 0xb6
	opInvokeSpecial   = 0xb7
	opInvokeStatic    = 0xb8
	opInvokeInterface = 0xb9
	opInvokeDynamic   = 0xba
	opTableSwitch     = 0xaa
	opLookupSwitch    = 0xab
	opWide            = 0xc4
	opIinc            = 0x84
)

// opLength is the encoded length of each fixed-size instruction, opcode included.
// Zero marks opcodes that are variable length or undefined.
var opLength = func() [256]uint8 {
	var t [256]uint8
	for op := 0x00; op <= 0xc9; op++ {
		t[op] = 1
	}
	set := func(n uint8, ops ...int) {
		for _, op := range ops {
			t[op] = n
		}
	}
	set(2, 0x10, 0x12, 0x15, 0x16, 0x17, 0x18, 0x19, 0x36, 0x37, 0x38, 0x39, 0x3a, 0xa9, 0xbc)
	set(3, 0x11, 0x13, 0x14, opIinc, 0xbb, 0xbd, 0xc0, 0xc1, 0xc6, 0xc7)
	for op := 0x99; op <= 0xa8; op++ {
		t[op] = 3
	}
	for op := opGetStatic; op <= opInvokeStatic; op++ {
		t[op] = 3
	}
	set(4, 0xc5)
	set(5, opInvokeInterface, opInvokeDynamic, 0xc8, 0xc9)
	set(0, opTableSwitch, opLookupSwitch, opWide)
	return t
}()

func (p *parser) readCode(index int, m *Method, body *reader) error {
	body.u2() // max_stack
	body.u2() // max_locals
	n := body.u4()
	if body.err != nil {
		return body.err
	}
	if uint64(n) > uint64(len(body.buf)-body.off) {
		return ErrTruncated
	}
	code := body.bytes(int(n))
	if err := p.scanCode(index, m, code); err != nil {
		return fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
	}
	// exception table and nested attributes carry nothing the scanner needs
	return nil
}

func (p *parser) scanCode(index int, m *Method, code []byte) error {
	for pc := 0; pc < len(code); {
		op := code[pc]
		size, err := instructionLength(code, pc)
		if err != nil {
			return err
		}
		if pc+size > len(code) {
			return fmt.Errorf("%w: instruction 0x%02x at %d overruns code", ErrTruncated, op, pc)
		}
		switch op {
		case opGetStatic, opPutStatic, opGetField, opPutField:
			owner, name, _, err := p.pool.memberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if err != nil {
				return err
			}
			m.FieldAccesses = append(m.FieldAccesses, FieldAccess{
				Put:    op == opPutStatic || op == opPutField,
				Static: op == opGetStatic || op == opPutStatic,
				Owner:  owner,
				Name:   name,
			})
		case opInvokeVirtual, opInvokeSpecial, opInvokeStatic, opInvokeInterface:
			owner, name, desc, err := p.pool.memberRef(binary.BigEndian.Uint16(code[pc+1:]))
			if err != nil {
				return err
			}
			m.Invocations = append(m.Invocations, Invocation{
				Kind:       invokeKinds[op],
				Owner:      owner,
				Name:       name,
				Descriptor: desc,
			})
		case opInvokeDynamic:
			e, err := p.pool.entry(binary.BigEndian.Uint16(code[pc+1:]), tagInvokeDynamic)
			if err != nil {
				return err
			}
			p.dynamic = append(p.dynamic, pendingDynamic{method: index, bootstrap: e.a})
		}
		pc += size
	}
	return nil
}

var invokeKinds = map[byte]InvokeKind{
	opInvokeVirtual:   InvokeVirtual,
	opInvokeSpecial:   InvokeSpecial,
	opInvokeStatic:    InvokeStatic,
	opInvokeInterface: InvokeInterface,
}

func instructionLength(code []byte, pc int) (int, error) {
	op := code[pc]
	if n := opLength[op]; n != 0 {
		return int(n), nil
	}
	switch op {
	case opWide:
		if pc+1 >= len(code) {
			return 0, ErrTruncated
		}
		if code[pc+1] == opIinc {
			return 6, nil
		}
		return 4, nil
	case opTableSwitch:
		base := pc + 1 + (4-(pc+1)%4)%4
		if base+12 > len(code) {
			return 0, ErrTruncated
		}
		low := int32(binary.BigEndian.Uint32(code[base+4:]))
		high := int32(binary.BigEndian.Uint32(code[base+8:]))
		if high < low {
			return 0, fmt.Errorf("%w: tableswitch at %d has high < low", ErrMalformed, pc)
		}
		return base - pc + 12 + int(int64(high)-int64(low)+1)*4, nil
	case opLookupSwitch:
		base := pc + 1 + (4-(pc+1)%4)%4
		if base+8 > len(code) {
			return 0, ErrTruncated
		}
		pairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if pairs < 0 {
			return 0, fmt.Errorf("%w: lookupswitch at %d has negative pair count", ErrMalformed, pc)
		}
		return base - pc + 8 + int(pairs)*8, nil
	}
	return 0, fmt.Errorf("%w: opcode 0x%02x at %d", ErrMalformed, op, pc)
}

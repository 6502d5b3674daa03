package classfile

import (
	"fmt"
	"strings"
)

var primitives = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// Action renders a method name and descriptor as name(type, type).
// An unparsable descriptor is kept verbatim after the name.
func Action(name, descriptor string) string {
	params, err := ParameterTypes(descriptor)
	if err != nil {
		return name + descriptor
	}
	return name + "(" + strings.Join(params, ", ") + ")"
}

// ParameterTypes lists the parameter types of a method descriptor in Java source notation.
func ParameterTypes(descriptor string) ([]string, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return nil, fmt.Errorf("%w: method descriptor %q", ErrMalformed, descriptor)
	}
	end := strings.IndexByte(descriptor, ')')
	if end < 0 {
		return nil, fmt.Errorf("%w: method descriptor %q", ErrMalformed, descriptor)
	}
	rest := descriptor[1:end]
	var out []string
	for rest != "" {
		t, n, err := fieldType(rest)
		if err != nil {
			return nil, fmt.Errorf("%w: method descriptor %q", ErrMalformed, descriptor)
		}
		out = append(out, t)
		rest = rest[n:]
	}
	return out, nil
}

// TypeName renders a field descriptor (Ljava/lang/String;, [I, ...) in Java source notation.
func TypeName(descriptor string) (string, error) {
	t, n, err := fieldType(descriptor)
	if err != nil {
		return "", err
	}
	if n != len(descriptor) {
		return "", fmt.Errorf("%w: field descriptor %q", ErrMalformed, descriptor)
	}
	return t, nil
}

func fieldType(s string) (string, int, error) {
	if s == "" {
		return "", 0, ErrMalformed
	}
	switch s[0] {
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 2 {
			return "", 0, ErrMalformed
		}
		return DottedName(s[1:end]), end + 1, nil
	case '[':
		t, n, err := fieldType(s[1:])
		if err != nil {
			return "", 0, err
		}
		return t + "[]", n + 1, nil
	default:
		if p, ok := primitives[s[0]]; ok && s[0] != 'V' {
			return p, 1, nil
		}
		if s[0] == 'V' && len(s) == 1 {
			return "void", 1, nil
		}
		return "", 0, ErrMalformed
	}
}

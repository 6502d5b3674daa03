package graph

import (
	"errors"
	"fmt"
)

// ErrInvalidNode is returned when a node is built without its required identity fields.
var ErrInvalidNode = errors.New("invalid node")

// ErrUnknownLinkType is returned by ParseLinkType for names outside the enumeration.
var ErrUnknownLinkType = errors.New("unknown link type")

// Kind discriminates node variants. Two nodes of different kinds are never equal.
type Kind uint8

const (
	// KindVertex is a generic code location (class member, class, field).
	KindVertex Kind = iota
	// KindTest is a test method or test aggregate.
	KindTest
	// KindCucumber is a behaviour scenario declared in a feature file.
	KindCucumber
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindTest:
		return "test"
	case KindCucumber:
		return "cucumber"
	default:
		return "unknown"
	}
}

// ParseKind maps a name produced by Kind.String back to its value.
func ParseKind(name string) (Kind, error) {
	for k := KindVertex; k <= KindCucumber; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrInvalidNode, name)
}

// LinkType classifies a directed relation between two nodes.
type LinkType uint8

const (
	EntryPoint LinkType = iota
	MethodCall
	StaticCall
	SpecialCall
	InterfaceCall
	DynamicCall
	FieldGet
	FieldPut
	Inheritance
	InterfaceImpl
	Override
	TestExecution
	TestSuite
	ForceRun
	CucumberTest
	CucumberMap
	ExternalTrace

	// numLinkTypes sizes the adopted-type bitmask.
	numLinkTypes
)

var linkTypeNames = [numLinkTypes]string{
	EntryPoint:    "ENTRY_POINT",
	MethodCall:    "METHOD_CALL",
	StaticCall:    "STATIC_CALL",
	SpecialCall:   "SPECIAL_CALL",
	InterfaceCall: "INTERFACE_CALL",
	DynamicCall:   "DYNAMIC_CALL",
	FieldGet:      "FIELD_GET",
	FieldPut:      "FIELD_PUT",
	Inheritance:   "INHERITANCE",
	InterfaceImpl: "INTERFACE_IMPL",
	Override:      "OVERRIDE",
	TestExecution: "TEST_EXECUTION",
	TestSuite:     "TEST_SUITE",
	ForceRun:      "FORCE_RUN",
	CucumberTest:  "CUCUMBER_TEST",
	CucumberMap:   "CUCUMBER_MAP",
	ExternalTrace: "EXTERNAL_TRACE",
}

func (t LinkType) String() string {
	if t < numLinkTypes {
		return linkTypeNames[t]
	}
	return fmt.Sprintf("LinkType(%d)", uint8(t))
}

// Valid reports whether t is a member of the enumeration.
func (t LinkType) Valid() bool {
	return t < numLinkTypes
}

// ParseLinkType maps a name produced by LinkType.String back to its value.
func ParseLinkType(name string) (LinkType, error) {
	for i, n := range linkTypeNames {
		if n == name {
			return LinkType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLinkType, name)
}

// AllLinkTypes returns every link type in declaration order.
func AllLinkTypes() []LinkType {
	out := make([]LinkType, 0, numLinkTypes)
	for t := LinkType(0); t < numLinkTypes; t++ {
		out = append(out, t)
	}
	return out
}

// NumLinkTypes is the size of the enumeration.
const NumLinkTypes = int(numLinkTypes)

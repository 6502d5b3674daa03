package graph

// Well-known synthetic vertices shared by every scanner.
const (
	InitActor = "VertexInitTypes"

	// ClassAction is the action of the vertex standing for a whole class.
	ClassAction = "<class>"
	// SuiteAction is the action of a test node standing for a whole suite.
	SuiteAction = "suite()"

	StepDefinitionsActor = "StepDefinitions"
)

var (
	// StartVertex is the canonical root; every discovered test is linked from it.
	StartVertex = MustVertex(InitActor, "START_VERTEX", Special())
	// EndVertex is the sink changed code is linked into.
	EndVertex = MustVertex(InitActor, "END_VERTEX", Special())
)

// ClassVertex returns the vertex standing for a class as a whole.
func ClassVertex(className string) (Node, error) {
	return NewVertex(className, ClassAction)
}

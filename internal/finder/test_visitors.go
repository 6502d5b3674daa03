package finder

import (
	"strings"

	"testimpact/internal/classfile"
	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

// Annotations that mark a method as a test.
var testAnnotations = []string{
	"org.junit.Test",
	"org.junit.jupiter.api.Test",
	"org.junit.jupiter.api.RepeatedTest",
	"org.junit.jupiter.api.TestFactory",
	"org.junit.jupiter.api.TestTemplate",
	"org.junit.jupiter.params.ParameterizedTest",
	testNGTest,
}

const testNGTest = "org.testng.annotations.Test"

// testMethods lists the test methods of a concrete class. A class level
// TestNG @Test turns every public void instance method into a test.
func testMethods(c *classfile.Class) []*classfile.Method {
	if c.IsInterface() || c.IsAbstract() {
		return nil
	}
	_, classLevel := c.FindAnnotation(testNGTest)

	var out []*classfile.Method
	for i := range c.Methods {
		m := &c.Methods[i]
		if m.IsAbstract() || m.IsSynthetic() {
			continue
		}
		if _, ok := m.FindAnnotation(testAnnotations...); ok {
			out = append(out, m)
			continue
		}
		if classLevel && m.IsPublic() && !m.IsStatic() && !m.IsConstructor() &&
			!m.IsStaticInit() && strings.HasSuffix(m.Descriptor, ")V") {
			out = append(out, m)
		}
	}
	return out
}

// TestClassVisitor links every test method from the start vertex and to the
// code vertex it executes.
type TestClassVisitor struct{}

func (v *TestClassVisitor) Name() string { return "test-class" }

func (v *TestClassVisitor) Visit(sc *sta.Context, c *classfile.Class) error {
	l := newLinker(sc)
	for _, m := range testMethods(c) {
		action := m.Action()
		test := l.test(c.Name, action)
		l.link(graph.StartVertex, test, graph.EntryPoint)
		l.link(test, l.vertex(c.Name, action), graph.TestExecution)
	}
	return l.err
}

// Suite runners and the annotations listing their members.
const (
	junit4RunWith       = "org.junit.runner.RunWith"
	junit4SuiteRunner   = "org.junit.runners.Suite"
	junit4SuiteClasses  = "org.junit.runners.Suite$SuiteClasses"
	junit5Suite         = "org.junit.platform.suite.api.Suite"
	junit5SelectClasses = "org.junit.platform.suite.api.SelectClasses"
)

// TestSuiteVisitor links test suites to the classes they run.
type TestSuiteVisitor struct{}

func (v *TestSuiteVisitor) Name() string { return "test-suite" }

func (v *TestSuiteVisitor) Visit(sc *sta.Context, c *classfile.Class) error {
	members := suiteMembers(c)
	if members == nil {
		return nil
	}
	l := newLinker(sc)
	suite := l.test(c.Name, graph.SuiteAction)
	l.link(graph.StartVertex, suite, graph.EntryPoint)
	for _, member := range members {
		l.link(suite, l.vertex(member, graph.ClassAction), graph.TestSuite)
	}
	return l.err
}

// suiteMembers returns nil when c is not a suite.
func suiteMembers(c *classfile.Class) []string {
	if runWith, ok := c.FindAnnotation(junit4RunWith); ok {
		if v, ok := runWith.Value("value"); ok && v.Class == junit4SuiteRunner {
			if classes, ok := c.FindAnnotation(junit4SuiteClasses); ok {
				v, _ := classes.Value("value")
				return nonNil(v.Classes())
			}
			return []string{}
		}
	}
	if _, ok := c.FindAnnotation(junit5Suite); ok {
		if classes, ok := c.FindAnnotation(junit5SelectClasses); ok {
			v, _ := classes.Value("value")
			return nonNil(v.Classes())
		}
		return []string{}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// AlwaysRunVisitor links tests carrying the configured always-run annotation,
// on the method or on its class, with a ForceRun link.
type AlwaysRunVisitor struct{}

func (v *AlwaysRunVisitor) Name() string { return "always-run" }

func (v *AlwaysRunVisitor) Visit(sc *sta.Context, c *classfile.Class) error {
	name := sc.AlwaysRunAnnotation()
	if name == "" {
		return nil
	}
	_, classLevel := c.FindAnnotation(name)

	l := newLinker(sc)
	for _, m := range testMethods(c) {
		if _, ok := m.FindAnnotation(name); ok || classLevel {
			l.link(graph.StartVertex, l.test(c.Name, m.Action()), graph.ForceRun)
		}
	}
	return l.err
}

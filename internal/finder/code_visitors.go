package finder

import (
	"strings"

	"testimpact/internal/classfile"
	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

var invokeLinkTypes = map[classfile.InvokeKind]graph.LinkType{
	classfile.InvokeVirtual:   graph.MethodCall,
	classfile.InvokeStatic:    graph.StaticCall,
	classfile.InvokeSpecial:   graph.SpecialCall,
	classfile.InvokeInterface: graph.InterfaceCall,
	classfile.InvokeDynamic:   graph.DynamicCall,
}

// CallGraphVisitor links each method to the in-scope methods it invokes and
// the fields it reads or writes. Lambda links need EnablePreview.
type CallGraphVisitor struct{}

func (v *CallGraphVisitor) Name() string { return "call-graph" }

func (v *CallGraphVisitor) Visit(sc *sta.Context, c *classfile.Class) error {
	l := newLinker(sc)
	for i := range c.Methods {
		m := &c.Methods[i]
		if len(m.Invocations) == 0 && len(m.FieldAccesses) == 0 {
			continue
		}
		caller := l.vertex(c.Name, m.Action())

		for _, inv := range m.Invocations {
			typ := invokeLinkTypes[inv.Kind]
			if typ == graph.DynamicCall && !sc.EnablePreview() {
				continue
			}
			if !inAppScope(sc, inv.Owner) {
				continue
			}
			callee := l.vertex(inv.Owner, inv.Action())
			if callee.Equal(caller) {
				continue
			}
			l.link(caller, callee, typ)
		}

		for _, fa := range m.FieldAccesses {
			if !inAppScope(sc, fa.Owner) {
				continue
			}
			typ := graph.FieldGet
			if fa.Put {
				typ = graph.FieldPut
			}
			l.link(caller, l.vertex(fa.Owner, fa.Name), typ)
		}
	}
	return l.err
}

// InheritanceVisitor links supertypes to their subtypes, and every method a
// subtype could override to the subtype's implementation, so that a call
// through a supertype reaches the override.
type InheritanceVisitor struct{}

func (v *InheritanceVisitor) Name() string { return "inheritance" }

func (v *InheritanceVisitor) Visit(sc *sta.Context, c *classfile.Class) error {
	type parent struct {
		name string
		typ  graph.LinkType
	}
	var parents []parent
	if inAppScope(sc, c.SuperName) {
		parents = append(parents, parent{c.SuperName, graph.Inheritance})
	}
	for _, iface := range c.Interfaces {
		if !inAppScope(sc, iface) {
			continue
		}
		typ := graph.InterfaceImpl
		if c.IsInterface() {
			typ = graph.Inheritance
		}
		parents = append(parents, parent{iface, typ})
	}
	if len(parents) == 0 {
		return nil
	}

	l := newLinker(sc)
	sub := l.vertex(c.Name, graph.ClassAction)
	for _, p := range parents {
		l.link(l.vertex(p.name, graph.ClassAction), sub, p.typ)
		for i := range c.Methods {
			m := &c.Methods[i]
			if !overridable(m) {
				continue
			}
			action := m.Action()
			l.link(l.vertex(p.name, action), l.vertex(c.Name, action), graph.Override)
		}
	}
	return l.err
}

func overridable(m *classfile.Method) bool {
	return !m.IsStatic() && !m.IsPrivate() && !m.IsConstructor() && !m.IsStaticInit() && !m.IsSynthetic()
}

// Cucumber step definition annotations, by package and simple name.
var (
	stepPackages = []string{"io.cucumber.java.", "cucumber.api.java."}
	stepKeywords = map[string]bool{"Given": true, "When": true, "Then": true, "And": true, "But": true}
)

// CucumberStepVisitor maps step definition patterns to the methods that implement them.
type CucumberStepVisitor struct{}

func (v *CucumberStepVisitor) Name() string { return "cucumber-step" }

func (v *CucumberStepVisitor) Visit(sc *sta.Context, c *classfile.Class) error {
	l := newLinker(sc)
	for i := range c.Methods {
		m := &c.Methods[i]
		for _, a := range m.Annotations {
			if !isStepAnnotation(a.Type) {
				continue
			}
			val, ok := a.Value("value")
			if !ok {
				continue
			}
			for _, pattern := range val.Strings() {
				if strings.TrimSpace(pattern) == "" {
					continue
				}
				step := l.vertex(graph.StepDefinitionsActor, pattern)
				l.link(step, l.vertex(c.Name, m.Action()), graph.CucumberMap)
			}
		}
	}
	return l.err
}

func isStepAnnotation(typ string) bool {
	for _, p := range stepPackages {
		if strings.HasPrefix(typ, p) {
			return stepKeywords[classfile.SimpleName(typ)]
		}
	}
	return false
}

package finder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"testimpact/internal/classfile"
	"testimpact/internal/classfile/classfiletest"
	"testimpact/internal/graph"
	"testimpact/internal/sta"
)

func TestTestClassVisitor(t *testing.T) {
	t.Run("junit5 and parameterized", func(t *testing.T) {
		b := classfiletest.New("com.acme.CartTest")
		b.Method("adds", "()V").Annotate(classfiletest.Ann("org.junit.jupiter.api.Test"))
		b.Method("totals", "(I)V").Annotate(classfiletest.Ann("org.junit.jupiter.params.ParameterizedTest"))
		b.Method("helper", "()V")

		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&TestClassVisitor{}).Visit(sc, parse(t, b)))

		for _, action := range []string{"adds()", "totals(int)"} {
			test := testVertex(t, "com.acme.CartTest", action)
			assert.True(t, sc.HasLink(link(graph.StartVertex, test, graph.EntryPoint)), action)
			assert.True(t, sc.HasLink(link(test, vertex(t, "com.acme.CartTest", action), graph.TestExecution)), action)
		}
		assert.Equal(t, 4, sc.LinkCount())
	})

	t.Run("testng class level", func(t *testing.T) {
		b := classfiletest.New("com.acme.NgTest").Annotate(classfiletest.Ann("org.testng.annotations.Test"))
		b.Method("<init>", "()V")
		b.Method("checks", "()V")
		b.Method("value", "()I")
		b.Method("util", "()V").Access(classfile.AccPublic | classfile.AccStatic)
		b.Method("hidden", "()V").Access(classfile.AccPrivate)

		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&TestClassVisitor{}).Visit(sc, parse(t, b)))

		entries := linksOfType(sc, graph.EntryPoint)
		require.Len(t, entries, 1)
		assert.Equal(t, "checks()", entries[0].Callee().Action())
		assert.Equal(t, graph.KindTest, entries[0].Callee().Kind())
	})

	t.Run("abstract classes are skipped", func(t *testing.T) {
		b := testClass("com.acme.BaseTest").Access(classfile.AccPublic | classfile.AccAbstract)
		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&TestClassVisitor{}).Visit(sc, parse(t, b)))
		assert.Zero(t, sc.LinkCount())
	})
}

func TestTestSuiteVisitor(t *testing.T) {
	t.Run("junit4", func(t *testing.T) {
		b := classfiletest.New("com.acme.AllTests").Annotate(
			classfiletest.Ann("org.junit.runner.RunWith", "value", classfiletest.ClassRef("org.junit.runners.Suite")),
			classfiletest.Ann("org.junit.runners.Suite$SuiteClasses", "value",
				[]classfiletest.ClassRef{"com.acme.ATest", "com.acme.BTest"}),
		)
		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&TestSuiteVisitor{}).Visit(sc, parse(t, b)))

		suite := testVertex(t, "com.acme.AllTests", graph.SuiteAction)
		assert.True(t, sc.HasLink(link(graph.StartVertex, suite, graph.EntryPoint)))
		assert.True(t, sc.HasLink(link(suite, vertex(t, "com.acme.ATest", graph.ClassAction), graph.TestSuite)))
		assert.True(t, sc.HasLink(link(suite, vertex(t, "com.acme.BTest", graph.ClassAction), graph.TestSuite)))
		assert.Equal(t, 3, sc.LinkCount())
	})

	t.Run("junit5", func(t *testing.T) {
		b := classfiletest.New("com.acme.Platform").Annotate(
			classfiletest.Ann("org.junit.platform.suite.api.Suite"),
			classfiletest.Ann("org.junit.platform.suite.api.SelectClasses", "value",
				[]classfiletest.ClassRef{"com.acme.CTest"}),
		)
		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&TestSuiteVisitor{}).Visit(sc, parse(t, b)))

		suite := testVertex(t, "com.acme.Platform", graph.SuiteAction)
		assert.True(t, sc.HasLink(link(suite, vertex(t, "com.acme.CTest", graph.ClassAction), graph.TestSuite)))
	})

	t.Run("other runners are not suites", func(t *testing.T) {
		b := classfiletest.New("com.acme.Param").Annotate(
			classfiletest.Ann("org.junit.runner.RunWith", "value", classfiletest.ClassRef("org.junit.runners.Parameterized")),
		)
		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&TestSuiteVisitor{}).Visit(sc, parse(t, b)))
		assert.Zero(t, sc.LinkCount())
	})
}

func TestAlwaysRunVisitor(t *testing.T) {
	t.Run("method level by simple name", func(t *testing.T) {
		b := classfiletest.New("com.acme.SmokeTest")
		b.Method("always", "()V").Annotate(
			classfiletest.Ann("org.junit.Test"),
			classfiletest.Ann("com.acme.annotations.AlwaysRun"),
		)
		b.Method("sometimes", "()V").Annotate(classfiletest.Ann("org.junit.Test"))

		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&AlwaysRunVisitor{}).Visit(sc, parse(t, b)))

		forced := linksOfType(sc, graph.ForceRun)
		require.Len(t, forced, 1)
		assert.True(t, forced[0].Caller().Equal(graph.StartVertex))
		assert.Equal(t, "always()", forced[0].Callee().Action())
	})

	t.Run("class level with configured name", func(t *testing.T) {
		b := classfiletest.New("com.acme.CriticalTest").Annotate(classfiletest.Ann("com.acme.Critical"))
		b.Method("a", "()V").Annotate(classfiletest.Ann("org.junit.Test"))
		b.Method("b", "()V").Annotate(classfiletest.Ann("org.junit.Test"))

		sc := newTestContext(t, sta.Options{AlwaysRunAnnotation: "com.acme.Critical"})
		require.NoError(t, (&AlwaysRunVisitor{}).Visit(sc, parse(t, b)))
		assert.Len(t, linksOfType(sc, graph.ForceRun), 2)
	})
}

func TestCallGraphVisitor(t *testing.T) {
	build := func() *classfile.Class {
		b := classfiletest.New("com.acme.Checkout")
		b.Method("pay", "(Lcom/acme/Card;)Z").
			Call(classfile.InvokeVirtual, "com.acme.Cart", "total", "()I").
			Call(classfile.InvokeStatic, "com.acme.Tax", "rate", "(Ljava/lang/String;)D").
			Call(classfile.InvokeSpecial, "com.acme.Checkout", "audit", "()V").
			Call(classfile.InvokeInterface, "com.acme.Gateway", "charge", "(I)Z").
			Call(classfile.InvokeVirtual, "java.lang.StringBuilder", "append", "(I)Ljava/lang/StringBuilder;").
			Call(classfile.InvokeVirtual, "com.acme.Checkout", "pay", "(Lcom/acme/Card;)Z").
			GetField("com.acme.Checkout", "cart", "Lcom/acme/Cart;", false).
			PutField("com.acme.Ledger", "LAST", "I", true).
			Lambda("com.acme.Checkout", "lambda$pay$0", "()V")
		return parse(t, b)
	}

	pay := vertex(t, "com.acme.Checkout", "pay(com.acme.Card)")

	t.Run("typed links", func(t *testing.T) {
		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&CallGraphVisitor{}).Visit(sc, build()))

		assert.True(t, sc.HasLink(link(pay, vertex(t, "com.acme.Cart", "total()"), graph.MethodCall)))
		assert.True(t, sc.HasLink(link(pay, vertex(t, "com.acme.Tax", "rate(java.lang.String)"), graph.StaticCall)))
		assert.True(t, sc.HasLink(link(pay, vertex(t, "com.acme.Checkout", "audit()"), graph.SpecialCall)))
		assert.True(t, sc.HasLink(link(pay, vertex(t, "com.acme.Gateway", "charge(int)"), graph.InterfaceCall)))
		assert.True(t, sc.HasLink(link(pay, vertex(t, "com.acme.Checkout", "cart"), graph.FieldGet)))
		assert.True(t, sc.HasLink(link(pay, vertex(t, "com.acme.Ledger", "LAST"), graph.FieldPut)))
		assert.Equal(t, 6, sc.LinkCount(), "platform calls, recursion and lambdas are not linked")
		assert.False(t, sc.IsAdoptedLinkType(graph.DynamicCall))
	})

	t.Run("lambdas with preview", func(t *testing.T) {
		sc := newTestContext(t, sta.Options{EnablePreview: true})
		require.NoError(t, (&CallGraphVisitor{}).Visit(sc, build()))
		assert.True(t, sc.HasLink(link(pay, vertex(t, "com.acme.Checkout", "lambda$pay$0()"), graph.DynamicCall)))
	})

	t.Run("filtered callees", func(t *testing.T) {
		sc := newTestContext(t, sta.Options{Filter: "com.acme.Cart, com.acme.Checkout"})
		require.NoError(t, (&CallGraphVisitor{}).Visit(sc, build()))
		for l := range sc.Links() {
			assert.Contains(t, []string{"com.acme.Cart", "com.acme.Checkout"}, l.Callee().Actor())
		}
		assert.Equal(t, 3, sc.LinkCount())
	})
}

func TestInheritanceVisitor(t *testing.T) {
	b := classfiletest.New("com.acme.CardGateway").
		Super("com.acme.BaseGateway").
		Implements("com.acme.Gateway", "java.io.Serializable")
	b.Method("<init>", "()V")
	b.Method("charge", "(I)Z")
	b.Method("create", "()Lcom/acme/CardGateway;").Access(classfile.AccPublic | classfile.AccStatic)
	b.Method("secret", "()V").Access(classfile.AccPrivate)

	sc := newTestContext(t, sta.Options{})
	require.NoError(t, (&InheritanceVisitor{}).Visit(sc, parse(t, b)))

	sub := vertex(t, "com.acme.CardGateway", graph.ClassAction)
	assert.True(t, sc.HasLink(link(vertex(t, "com.acme.BaseGateway", graph.ClassAction), sub, graph.Inheritance)))
	assert.True(t, sc.HasLink(link(vertex(t, "com.acme.Gateway", graph.ClassAction), sub, graph.InterfaceImpl)))

	charge := vertex(t, "com.acme.CardGateway", "charge(int)")
	assert.True(t, sc.HasLink(link(vertex(t, "com.acme.BaseGateway", "charge(int)"), charge, graph.Override)))
	assert.True(t, sc.HasLink(link(vertex(t, "com.acme.Gateway", "charge(int)"), charge, graph.Override)))
	assert.Len(t, linksOfType(sc, graph.Override), 2)
	assert.Equal(t, 4, sc.LinkCount())

	t.Run("interfaces extend interfaces", func(t *testing.T) {
		b := classfiletest.New("com.acme.FastGateway").Interface().Implements("com.acme.Gateway")
		sc := newTestContext(t, sta.Options{})
		require.NoError(t, (&InheritanceVisitor{}).Visit(sc, parse(t, b)))
		assert.Len(t, linksOfType(sc, graph.Inheritance), 1)
		assert.Empty(t, linksOfType(sc, graph.InterfaceImpl))
	})
}

func TestCucumberStepVisitor(t *testing.T) {
	b := classfiletest.New("com.acme.steps.CartSteps")
	b.Method("holds", "(I)V").Annotate(classfiletest.Ann("io.cucumber.java.en.Given", "value", "the cart holds {int} items"))
	b.Method("pays", "(Ljava/lang/String;)V").Annotate(classfiletest.Ann("cucumber.api.java.en.When", "value", "^the customer pays with \"(.*)\"$"))
	b.Method("setUp", "()V").Annotate(classfiletest.Ann("io.cucumber.java.Before"))

	sc := newTestContext(t, sta.Options{})
	require.NoError(t, (&CucumberStepVisitor{}).Visit(sc, parse(t, b)))

	assert.True(t, sc.HasLink(link(
		vertex(t, graph.StepDefinitionsActor, "the cart holds {int} items"),
		vertex(t, "com.acme.steps.CartSteps", "holds(int)"),
		graph.CucumberMap,
	)))
	assert.True(t, sc.HasLink(link(
		vertex(t, graph.StepDefinitionsActor, `^the customer pays with "(.*)"$`),
		vertex(t, "com.acme.steps.CartSteps", "pays(java.lang.String)"),
		graph.CucumberMap,
	)))
	assert.Equal(t, 2, sc.LinkCount())
}

package extractor

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// JavaExtractor implements LanguageExtractor for Java. Actions are rendered
// as name(type, type) with erased, fully qualified parameter types, matching
// what the compiled class file yields for the same member.
type JavaExtractor struct{}

func (j *JavaExtractor) GetLanguage() *sitter.Language {
	return java.GetLanguage()
}

func (j *JavaExtractor) GetQuery() string {
	return `
		(class_declaration) @type
		(interface_declaration) @type
		(enum_declaration) @type
		(record_declaration) @type
		(annotation_type_declaration) @type
		(method_declaration) @method
		(constructor_declaration) @constructor
		(compact_constructor_declaration) @constructor
		(static_initializer) @initializer
		(field_declaration) @field
		(constant_declaration) @field
		(enum_constant) @enum_constant
	`
}

func (j *JavaExtractor) Extensions() []string {
	return []string{".java"}
}

var typeDeclarations = map[string]string{
	"class_declaration":           "class",
	"interface_declaration":       "interface",
	"enum_declaration":            "enum",
	"record_declaration":          "record",
	"annotation_type_declaration": "annotation",
}

var typeBodies = map[string]bool{
	"class_body":             true,
	"interface_body":         true,
	"enum_body":              true,
	"enum_body_declarations": true,
	"annotation_type_body":   true,
}

// javaLang lists the java.lang types usable without an import.
var javaLang = map[string]bool{
	"Object": true, "String": true, "CharSequence": true, "StringBuilder": true, "StringBuffer": true,
	"Integer": true, "Long": true, "Short": true, "Byte": true, "Double": true, "Float": true,
	"Boolean": true, "Character": true, "Number": true, "Void": true, "Math": true,
	"Class": true, "Enum": true, "Record": true, "Iterable": true, "Comparable": true,
	"Runnable": true, "Thread": true, "AutoCloseable": true, "Cloneable": true,
	"Throwable": true, "Exception": true, "RuntimeException": true, "Error": true,
	"IllegalArgumentException": true, "IllegalStateException": true,
	"NullPointerException": true, "UnsupportedOperationException": true,
}

// Prepare reads the package, the single-type imports and every named type
// declared in the file.
func (j *JavaExtractor) Prepare(root *sitter.Node, src []byte, path string) *FileContext {
	file := &FileContext{Path: path, Types: make(map[string]string)}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "package_declaration":
			for k := 0; k < int(child.NamedChildCount()); k++ {
				if id := child.NamedChild(k); id.Type() == "scoped_identifier" || id.Type() == "identifier" {
					file.Package = strings.Join(strings.Fields(id.Content(src)), "")
				}
			}
		case "import_declaration":
			j.addImport(file, child.Content(src))
		}
	}

	// local types shadow imports
	j.collectTypes(root, src, file, nil)
	return file
}

func (j *JavaExtractor) addImport(file *FileContext, text string) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))
	text = strings.TrimSpace(strings.TrimPrefix(text, "import"))
	if strings.HasPrefix(text, "static ") || strings.HasSuffix(text, "*") {
		return
	}
	text = strings.Join(strings.Fields(text), "")
	segments := strings.Split(text, ".")
	if len(segments) == 0 {
		return
	}
	file.Types[segments[len(segments)-1]] = qualifiedToBinary(segments)
}

// qualifiedToBinary turns a.b.Outer.Inner into a.b.Outer$Inner, taking the
// first capitalised segment as the top-level class.
func qualifiedToBinary(segments []string) string {
	for i, s := range segments {
		if s != "" && unicode.IsUpper([]rune(s)[0]) {
			return strings.Join(segments[:i+1], ".") + joinNested(segments[i+1:])
		}
	}
	return strings.Join(segments, ".")
}

func joinNested(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "$" + strings.Join(names, "$")
}

func (j *JavaExtractor) collectTypes(n *sitter.Node, src []byte, file *FileContext, outer []string) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if _, ok := typeDeclarations[child.Type()]; ok {
			name := child.ChildByFieldName("name")
			if name == nil {
				continue
			}
			names := append(append([]string(nil), outer...), name.Content(src))
			file.Types[name.Content(src)] = binaryName(file.Package, names)
			if body := child.ChildByFieldName("body"); body != nil {
				j.collectTypes(body, src, file, names)
			}
			continue
		}
		if typeBodies[child.Type()] {
			j.collectTypes(child, src, file, outer)
		}
	}
}

func (j *JavaExtractor) ExtractUnits(captureName string, node *sitter.Node, src []byte, file *FileContext) []*CodeUnit {
	owner, ok := j.enclosingType(node, src, file)
	if !ok {
		return nil
	}
	start := int(node.StartPoint().Row + 1)
	end := int(node.EndPoint().Row + 1)
	unit := func(kind, name, ownerName, action string) *CodeUnit {
		return &CodeUnit{
			StartLine: start,
			EndLine:   end,
			UnitType:  kind,
			Name:      name,
			Owner:     ownerName,
			Action:    action,
		}
	}

	switch captureName {
	case "type":
		name := nodeName(node, src)
		if name == "" {
			return nil
		}
		binary := binaryName(file.Package, []string{name})
		if owner != nil {
			binary = owner.binary + "$" + name
		}
		return []*CodeUnit{unit(typeDeclarations[node.Type()], name, binary, "<class>")}

	case "method":
		if owner == nil {
			return nil
		}
		name := nodeName(node, src)
		params := j.parameterTypes(node.ChildByFieldName("parameters"), src, file, owner, node)
		return []*CodeUnit{unit("method", name, owner.binary, action(name, params))}

	case "constructor":
		if owner == nil {
			return nil
		}
		var params []string
		switch {
		case node.Type() == "compact_constructor_declaration":
			params = j.parameterTypes(owner.node.ChildByFieldName("parameters"), src, file, owner, node)
		default:
			params = j.parameterTypes(node.ChildByFieldName("parameters"), src, file, owner, node)
		}
		params = append(owner.implicitConstructorParams(), params...)
		return []*CodeUnit{unit("constructor", owner.simple, owner.binary, action("<init>", params))}

	case "initializer":
		if owner == nil {
			return nil
		}
		return []*CodeUnit{unit("initializer", "<clinit>", owner.binary, "<clinit>()")}

	case "field":
		if owner == nil {
			return nil
		}
		var out []*CodeUnit
		for i := 0; i < int(node.NamedChildCount()); i++ {
			d := node.NamedChild(i)
			if d.Type() != "variable_declarator" {
				continue
			}
			if name := nodeName(d, src); name != "" {
				out = append(out, unit("field", name, owner.binary, name))
			}
		}
		return out

	case "enum_constant":
		if owner == nil {
			return nil
		}
		name := nodeName(node, src)
		return []*CodeUnit{unit("field", name, owner.binary, name)}
	}
	return nil
}

// javaType is a named type declaration enclosing a member.
type javaType struct {
	node   *sitter.Node
	simple string
	binary string
	// outer is the binary name of the enclosing class for inner (non-static) classes.
	outer  string
	isEnum bool
}

// implicitConstructorParams are the parameters javac prepends to constructors.
func (t *javaType) implicitConstructorParams() []string {
	switch {
	case t.isEnum:
		return []string{"java.lang.String", "int"}
	case t.outer != "":
		return []string{t.outer}
	}
	return nil
}

// enclosingType walks up from n to the type declaring it. A nil type with ok
// means n is a top-level declaration. Members of anonymous and local classes
// are not reported: their lines already belong to the enclosing member.
func (j *JavaExtractor) enclosingType(n *sitter.Node, src []byte, file *FileContext) (*javaType, bool) {
	var chain []*sitter.Node
	inBody := false
	for p := n.Parent(); p != nil; p = p.Parent() {
		t := p.Type()
		switch {
		case t == "program":
			return j.resolveChain(chain, src, file), true
		case typeBodies[t]:
			inBody = true
		case isTypeDecl(p) && inBody:
			chain = append(chain, p)
			inBody = false
		default:
			return nil, false
		}
	}
	return nil, false
}

func isTypeDecl(n *sitter.Node) bool {
	return typeDeclarations[n.Type()] != ""
}

func (j *JavaExtractor) resolveChain(chain []*sitter.Node, src []byte, file *FileContext) *javaType {
	if len(chain) == 0 {
		return nil
	}
	// chain runs innermost first
	names := make([]string, len(chain))
	for i, decl := range chain {
		names[len(chain)-1-i] = nodeName(decl, src)
	}
	inner := chain[0]
	t := &javaType{
		node:   inner,
		simple: names[len(names)-1],
		binary: binaryName(file.Package, names),
		isEnum: inner.Type() == "enum_declaration",
	}
	// nested enums, records and interfaces, and classes inside interfaces, are implicitly static
	if len(chain) > 1 && inner.Type() == "class_declaration" && !hasModifier(inner, src, "static") &&
		chain[1].Type() != "interface_declaration" && chain[1].Type() != "annotation_type_declaration" {
		t.outer = binaryName(file.Package, names[:len(names)-1])
	}
	return t
}

func hasModifier(decl *sitter.Node, src []byte, modifier string) bool {
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		c := decl.NamedChild(i)
		if c.Type() != "modifiers" {
			continue
		}
		for _, f := range strings.Fields(c.Content(src)) {
			if f == modifier {
				return true
			}
		}
	}
	return false
}

func nodeName(n *sitter.Node, src []byte) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return name.Content(src)
	}
	return ""
}

func action(name string, params []string) string {
	return name + "(" + strings.Join(params, ", ") + ")"
}

// parameterTypes renders the erased parameter types of a formal_parameters node.
func (j *JavaExtractor) parameterTypes(params *sitter.Node, src []byte, file *FileContext, owner *javaType, member *sitter.Node) []string {
	if params == nil {
		return nil
	}
	vars := typeVariables(src, member, owner)
	var out []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			t := j.typeName(p.ChildByFieldName("type"), src, file, vars)
			if dims := p.ChildByFieldName("dimensions"); dims != nil {
				t += strings.Repeat("[]", strings.Count(dims.Content(src), "["))
			}
			out = append(out, t)
		case "spread_parameter":
			for k := 0; k < int(p.NamedChildCount()); k++ {
				c := p.NamedChild(k)
				if c.Type() == "modifiers" || c.Type() == "variable_declarator" {
					continue
				}
				out = append(out, j.typeName(c, src, file, vars)+"[]")
				break
			}
		}
	}
	return out
}

// typeVariables maps the type parameters visible to member to their erasure.
func typeVariables(src []byte, member *sitter.Node, owner *javaType) map[string]string {
	vars := make(map[string]string)
	add := func(decl *sitter.Node) {
		if decl == nil {
			return
		}
		tps := decl.ChildByFieldName("type_parameters")
		if tps == nil {
			return
		}
		for i := 0; i < int(tps.NamedChildCount()); i++ {
			tp := tps.NamedChild(i)
			if tp.Type() != "type_parameter" {
				continue
			}
			var name, bound string
			for k := 0; k < int(tp.NamedChildCount()); k++ {
				c := tp.NamedChild(k)
				switch c.Type() {
				case "type_identifier", "identifier":
					if name == "" {
						name = c.Content(src)
					}
				case "type_bound":
					if c.NamedChildCount() > 0 {
						bound = c.NamedChild(0).Content(src)
					}
				}
			}
			if name == "" {
				continue
			}
			if _, shadowed := vars[name]; !shadowed {
				vars[name] = bound
			}
		}
	}
	// the member's own type parameters shadow the class's
	add(member)
	if owner != nil {
		for p := owner.node; p != nil; p = p.Parent() {
			if isTypeDecl(p) {
				add(p)
			}
		}
	}
	return vars
}

func (j *JavaExtractor) typeName(t *sitter.Node, src []byte, file *FileContext, vars map[string]string) string {
	if t == nil {
		return "java.lang.Object"
	}
	switch t.Type() {
	case "integral_type", "floating_point_type", "boolean_type", "void_type":
		return t.Content(src)
	case "type_identifier":
		return j.resolve(t.Content(src), file, vars)
	case "scoped_type_identifier":
		return j.resolveScoped(stripTypeArgs(t.Content(src)), file, vars)
	case "generic_type":
		if t.NamedChildCount() > 0 {
			return j.typeName(t.NamedChild(0), src, file, vars)
		}
	case "array_type":
		elem := j.typeName(t.ChildByFieldName("element"), src, file, vars)
		dims := 1
		if d := t.ChildByFieldName("dimensions"); d != nil {
			dims = strings.Count(d.Content(src), "[")
		}
		return elem + strings.Repeat("[]", dims)
	case "annotated_type":
		if n := t.NamedChildCount(); n > 0 {
			return j.typeName(t.NamedChild(int(n)-1), src, file, vars)
		}
	}
	return j.resolveScoped(stripTypeArgs(t.Content(src)), file, vars)
}

func (j *JavaExtractor) resolve(simple string, file *FileContext, vars map[string]string) string {
	if bound, ok := vars[simple]; ok {
		if bound == "" || bound == simple {
			return "java.lang.Object"
		}
		// erase to the first bound without recursing into other variables
		return j.resolveScoped(stripTypeArgs(bound), file, nil)
	}
	if binary, ok := file.Types[simple]; ok {
		return binary
	}
	if javaLang[simple] {
		return "java.lang." + simple
	}
	return binaryName(file.Package, []string{simple})
}

func (j *JavaExtractor) resolveScoped(name string, file *FileContext, vars map[string]string) string {
	name = strings.Join(strings.Fields(name), "")
	segments := strings.Split(name, ".")
	if len(segments) == 1 {
		return j.resolve(name, file, vars)
	}
	first := segments[0]
	if first != "" && unicode.IsUpper([]rune(first)[0]) {
		// Outer.Inner relative to a known or same-package type
		return j.resolve(first, file, vars) + joinNested(segments[1:])
	}
	return qualifiedToBinary(segments)
}

func stripTypeArgs(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

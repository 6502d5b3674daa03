package gherkin

import (
	"fmt"
	"regexp"
	"strings"
)

// parameterTypes maps built-in Cucumber expression parameters to regular expressions.
var parameterTypes = map[string]string{
	"int":        `-?\d+`,
	"byte":       `-?\d+`,
	"short":      `-?\d+`,
	"long":       `-?\d+`,
	"biginteger": `-?\d+`,
	"float":      `-?\d*[.,]?\d+(?:[eE][-+]?\d+)?`,
	"double":     `-?\d*[.,]?\d+(?:[eE][-+]?\d+)?`,
	"bigdecimal": `-?\d*[.,]?\d+(?:[eE][-+]?\d+)?`,
	"word":       `[^\s]+`,
	"string":     `"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`,
	"":           `.*`,
}

// StepPattern matches step text against a step definition.
type StepPattern struct {
	Source string
	re     *regexp.Regexp
}

func (p *StepPattern) Match(text string) bool {
	return p.re.MatchString(text)
}

// CompileStepPattern compiles a step definition pattern. Patterns anchored
// with ^ or $ are regular expressions; everything else is a Cucumber
// expression. Unknown parameter types match any text.
func CompileStepPattern(source string) (*StepPattern, error) {
	var expr string
	if strings.HasPrefix(source, "^") || strings.HasSuffix(source, "$") {
		expr = source
		if !strings.HasPrefix(expr, "^") {
			expr = "^" + expr
		}
		if !strings.HasSuffix(expr, "$") {
			expr += "$"
		}
	} else {
		var err error
		if expr, err = translateExpression(source); err != nil {
			return nil, err
		}
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("step pattern %q: %w", source, err)
	}
	return &StepPattern{Source: source, re: re}, nil
}

// translateExpression rewrites a Cucumber expression as an anchored regular
// expression. It supports {parameters}, (optional text), a/b alternation
// within a word and backslash escapes.
func translateExpression(source string) (string, error) {
	var b strings.Builder
	b.WriteString("^")

	// words are translated one at a time so alternation stays inside a word
	var word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		word.Reset()
		if strings.Contains(w, "\x00") {
			alts := strings.Split(w, "\x00")
			b.WriteString("(?:")
			b.WriteString(strings.Join(alts, "|"))
			b.WriteString(")")
			return
		}
		b.WriteString(w)
	}

	rs := []rune(source)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch r {
		case '\\':
			if i+1 < len(rs) {
				i++
				word.WriteString(regexp.QuoteMeta(string(rs[i])))
			} else {
				word.WriteString(`\\`)
			}
		case '{':
			end := indexRune(rs, i+1, '}')
			if end < 0 {
				return "", fmt.Errorf("step pattern %q: unterminated parameter", source)
			}
			name := string(rs[i+1 : end])
			re, ok := parameterTypes[name]
			if !ok {
				re = `.*`
			}
			word.WriteString("(" + re + ")")
			i = end
		case '(':
			end := indexRune(rs, i+1, ')')
			if end < 0 {
				return "", fmt.Errorf("step pattern %q: unterminated optional text", source)
			}
			word.WriteString("(?:" + regexp.QuoteMeta(string(rs[i+1:end])) + ")?")
			i = end
		case '/':
			word.WriteString("\x00")
		case ' ':
			flush()
			b.WriteString(" ")
		default:
			word.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	flush()
	b.WriteString("$")
	return b.String(), nil
}

func indexRune(rs []rune, from int, r rune) int {
	for i := from; i < len(rs); i++ {
		if rs[i] == r {
			return i
		}
	}
	return -1
}

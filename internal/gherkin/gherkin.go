// Package gherkin reads the subset of the Gherkin language needed to map
// scenarios onto step definitions: features, rules, backgrounds, scenarios,
// scenario outlines with their examples, and steps.
package gherkin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrNoFeature = errors.New("no Feature keyword")

type Step struct {
	Keyword string
	Text    string
	Line    int
}

// Examples is one examples table of a scenario outline.
type Examples struct {
	Line   int
	Header []string
	Rows   [][]string
}

type Scenario struct {
	Name     string
	Line     int
	Tags     []string
	Outline  bool
	Steps    []Step
	Examples []Examples
	// Background holds the steps of the backgrounds in effect, feature level first.
	Background []Step
}

// Expanded returns the step texts the scenario executes with outline
// placeholders substituted, one slice per examples row. A scenario that is
// not an outline, or an outline without example rows, yields a single run.
func (s Scenario) Expanded() [][]string {
	base := make([]string, 0, len(s.Background)+len(s.Steps))
	for _, st := range s.Background {
		base = append(base, st.Text)
	}
	for _, st := range s.Steps {
		base = append(base, st.Text)
	}

	var runs [][]string
	for _, ex := range s.Examples {
		for _, row := range ex.Rows {
			run := make([]string, len(base))
			for i, text := range base {
				for c, h := range ex.Header {
					if c < len(row) {
						text = strings.ReplaceAll(text, "<"+h+">", row[c])
					}
				}
				run[i] = text
			}
			runs = append(runs, run)
		}
	}
	if len(runs) == 0 {
		runs = append(runs, base)
	}
	return runs
}

type Feature struct {
	Name      string
	Line      int
	Tags      []string
	Scenarios []Scenario
}

var (
	scenarioKeywords = []string{"Scenario Outline:", "Scenario Template:", "Scenario:", "Example:"}
	examplesKeywords = []string{"Examples:", "Scenarios:"}
	stepKeywords     = []string{"Given ", "When ", "Then ", "And ", "But ", "* "}
)

type section int

const (
	inNone section = iota
	inBackground
	inScenario
	inExamples
)

// Parse reads one feature file.
func Parse(r io.Reader) (*Feature, error) {
	var (
		feature     *Feature
		featureBg   []Step
		ruleBg      []Step
		inRule      bool
		current     *Scenario
		examples    *Examples
		bg          *[]Step
		sec         = inNone
		pendingTags []string
		docString   string
		lineNo      int
	)

	backdrop := func() []Step {
		out := append([]Step(nil), featureBg...)
		return append(out, ruleBg...)
	}
	flushScenario := func() {
		if current == nil {
			return
		}
		if examples != nil {
			current.Examples = append(current.Examples, *examples)
			examples = nil
		}
		feature.Scenarios = append(feature.Scenarios, *current)
		current = nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		if docString != "" {
			if strings.HasPrefix(line, docString) {
				docString = ""
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, `"""`) || strings.HasPrefix(line, "```") {
			docString = line[:3]
			continue
		}
		if strings.HasPrefix(line, "@") {
			pendingTags = append(pendingTags, strings.Fields(line)...)
			continue
		}

		if rest, ok := cutKeyword(line, "Feature:"); ok {
			if feature != nil {
				return nil, fmt.Errorf("line %d: second Feature keyword", lineNo)
			}
			feature = &Feature{Name: rest, Line: lineNo, Tags: pendingTags}
			pendingTags = nil
			continue
		}
		if feature == nil {
			// language headers and stray text before the Feature keyword
			continue
		}

		if _, ok := cutKeyword(line, "Rule:"); ok {
			flushScenario()
			ruleBg = nil
			inRule = true
			sec = inNone
			pendingTags = nil
			continue
		}
		if _, ok := cutKeyword(line, "Background:"); ok {
			flushScenario()
			if inRule {
				bg = &ruleBg
			} else {
				bg = &featureBg
			}
			sec = inBackground
			continue
		}
		if kw, rest, ok := cutAny(line, scenarioKeywords); ok {
			flushScenario()
			current = &Scenario{
				Name:       rest,
				Line:       lineNo,
				Tags:       pendingTags,
				Outline:    kw == "Scenario Outline:" || kw == "Scenario Template:",
				Background: backdrop(),
			}
			pendingTags = nil
			sec = inScenario
			continue
		}
		if _, _, ok := cutAny(line, examplesKeywords); ok {
			if current == nil {
				return nil, fmt.Errorf("line %d: Examples outside a scenario", lineNo)
			}
			if examples != nil {
				current.Examples = append(current.Examples, *examples)
			}
			examples = &Examples{Line: lineNo}
			pendingTags = nil
			sec = inExamples
			continue
		}
		if strings.HasPrefix(line, "|") {
			if sec == inExamples && examples != nil {
				cells := tableCells(line)
				if examples.Header == nil {
					examples.Header = cells
				} else {
					examples.Rows = append(examples.Rows, cells)
				}
			}
			// data tables attached to steps carry no step text
			continue
		}
		if kw, rest, ok := cutAny(line, stepKeywords); ok {
			step := Step{Keyword: strings.TrimSpace(kw), Text: strings.TrimSpace(rest), Line: lineNo}
			switch sec {
			case inBackground:
				*bg = append(*bg, step)
			case inScenario:
				current.Steps = append(current.Steps, step)
			default:
				return nil, fmt.Errorf("line %d: step outside a scenario", lineNo)
			}
			continue
		}
		// anything else is description text
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, ErrNoFeature
	}
	flushScenario()
	return feature, nil
}

func cutKeyword(line, kw string) (string, bool) {
	if !strings.HasPrefix(line, kw) {
		return "", false
	}
	return strings.TrimSpace(line[len(kw):]), true
}

func cutAny(line string, keywords []string) (string, string, bool) {
	for _, kw := range keywords {
		if rest, ok := cutKeyword(line, kw); ok {
			return kw, rest, true
		}
	}
	return "", "", false
}

func tableCells(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

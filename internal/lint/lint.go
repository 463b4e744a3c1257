// Package lint scans Go sources for call sites that bypass the routed launch
// and context-switch helpers: bare go statements, direct Dispatch calls and
// raw scope.WithContext switches.
//
// Matching is textual, line by line over each function's source, so it also
// fires inside string literals. A function opts out of a rule with a
// "launchlint:ignore <rule>" line in its doc comment; a bare
// "launchlint:ignore" silences every rule.
package lint

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strings"
)

// Rule is one banned pattern.
type Rule struct {
	ID      string `mapstructure:"id" json:"id" yaml:"id"`
	Pattern string `mapstructure:"pattern" json:"pattern" yaml:"pattern"`
	Message string `mapstructure:"message" json:"message" yaml:"message"`
}

// DefaultRules flags the raw primitives the scope helpers wrap.
var DefaultRules = []Rule{
	{
		ID:      "raw-go",
		Pattern: `^\s*go\s+[\w(]`,
		Message: "launch work with Scope.LaunchIO, Scope.LaunchMain or Scope.Builder instead of a bare go statement",
	},
	{
		ID:      "raw-dispatch",
		Pattern: `\.Dispatch\(`,
		Message: "use a Scope launch helper instead of calling Dispatch directly",
	},
	{
		ID:      "raw-context-switch",
		Pattern: `\bscope\.WithContext\(`,
		Message: "use scope.WithIO or scope.WithMain instead of scope.WithContext",
	},
}

// Finding is a single rule match.
type Finding struct {
	Rule     string `json:"rule" yaml:"rule"`
	File     string `json:"file" yaml:"file"`
	Line     int    `json:"line" yaml:"line"`
	Function string `json:"function" yaml:"function"`
	// Offset is the byte offset of the match within the function's text.
	Offset  int    `json:"offset" yaml:"offset"`
	Message string `json:"message" yaml:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: [%s] %s: %s", f.File, f.Line, f.Rule, f.Function, f.Message)
}

type compiledRule struct {
	Rule
	re *regexp.Regexp
}

// Scanner applies a fixed rule set.
type Scanner struct {
	rules []compiledRule
}

// NewScanner compiles rules. An empty set means DefaultRules.
func NewScanner(rules []Rule) (*Scanner, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	s := &Scanner{}
	for _, r := range rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule with pattern %q has no id", r.Pattern)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		s.rules = append(s.rules, compiledRule{Rule: r, re: re})
	}
	return s, nil
}

// ScanSource scans one file's contents. filename is used for positions and
// reporting only.
func (s *Scanner) ScanSource(filename string, src []byte) ([]Finding, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	var findings []Finding
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		ignored := ignoredRules(fn.Doc)
		if ignored["*"] {
			continue
		}
		start := fset.Position(fn.Pos())
		end := fset.Position(fn.End())
		text := string(src[start.Offset:end.Offset])
		name := funcName(fn)

		offset := 0
		for i, line := range strings.Split(text, "\n") {
			for _, r := range s.rules {
				if ignored[r.ID] {
					continue
				}
				if loc := r.re.FindStringIndex(line); loc != nil {
					findings = append(findings, Finding{
						Rule:     r.ID,
						File:     filename,
						Line:     start.Line + i,
						Function: name,
						Offset:   offset + loc[0],
						Message:  fmt.Sprintf("function %s: %s", name, r.Message),
					})
				}
			}
			offset += len(line) + 1
		}
	}
	return findings, nil
}

func funcName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	return recvName(fn.Recv.List[0].Type) + "." + fn.Name.Name
}

func recvName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return recvName(t.X)
	case *ast.IndexExpr:
		return recvName(t.X)
	case *ast.IndexListExpr:
		return recvName(t.X)
	case *ast.Ident:
		return t.Name
	default:
		return "?"
	}
}

const ignoreDirective = "launchlint:ignore"

func ignoredRules(doc *ast.CommentGroup) map[string]bool {
	out := make(map[string]bool)
	if doc == nil {
		return out
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(c.Text, "//"), "/*"))
		if !strings.HasPrefix(text, ignoreDirective) {
			continue
		}
		ids := strings.Fields(strings.TrimPrefix(text, ignoreDirective))
		if len(ids) == 0 {
			out["*"] = true
		}
		for _, id := range ids {
			out[id] = true
		}
	}
	return out
}

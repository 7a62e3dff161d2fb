// Package visibility enforces that every publicly visible method is
// declared by a contract (the language's term for a trait) that its
// receiving type implements, rather than being exposed as an ad hoc
// inherent method. This mirrors a nominal-interface discipline: a
// type's public surface is always named by a contract somewhere, so
// callers can program against the contract instead of the concrete type.
package visibility

import (
	"fmt"
	"strings"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/diag"
	"github.com/vex-lang/vexc/internal/lexer"
)

// Checker walks a file's contract (trait) declarations and impl blocks,
// verifying every `pub fn` method is backed by a contract the
// receiving type implements.
type Checker struct {
	// contractMethods maps a contract name to the method names it declares.
	contractMethods map[string]map[string]bool
	// typeContracts maps a receiving type's name to the contracts it implements.
	typeContracts map[string][]string

	Errors []diag.Diagnostic
}

// NewChecker creates an empty visibility checker.
func NewChecker() *Checker {
	return &Checker{
		contractMethods: make(map[string]map[string]bool),
		typeContracts:   make(map[string][]string),
	}
}

// Check builds the contract registry for file and verifies every public
// method against it, returning the accumulated diagnostics.
func (c *Checker) Check(file *ast.File) []diag.Diagnostic {
	c.buildRegistry(file)

	for _, decl := range file.Decls {
		impl, ok := decl.(*ast.ImplDecl)
		if !ok {
			continue
		}
		targetName := typeExprName(impl.Target)
		for _, method := range impl.Methods {
			c.checkMethod(targetName, method)
		}
	}

	return c.Errors
}

func (c *Checker) buildRegistry(file *ast.File) {
	for _, decl := range file.Decls {
		if trait, ok := decl.(*ast.TraitDecl); ok && trait.Name != nil {
			methods := make(map[string]bool, len(trait.Methods))
			for _, m := range trait.Methods {
				if m.Name != nil {
					methods[m.Name.Name] = true
				}
			}
			c.contractMethods[trait.Name.Name] = methods
		}
	}

	for _, decl := range file.Decls {
		impl, ok := decl.(*ast.ImplDecl)
		if !ok || impl.Trait == nil {
			continue
		}
		targetName := typeExprName(impl.Target)
		traitName := typeExprName(impl.Trait)
		if targetName == "" || traitName == "" {
			continue
		}
		c.typeContracts[targetName] = append(c.typeContracts[targetName], traitName)
	}
}

// isOperatorMethod reports whether name names an operator method
// (`op+`, `op[]`, …) or the bare constructor convention `op`, both of
// which are exempt from the contract requirement since they're invoked
// through syntax rather than a named interface.
func isOperatorMethod(name string) bool {
	return name == "op" || strings.HasPrefix(name, "op")
}

func (c *Checker) checkMethod(targetName string, method *ast.FnDecl) {
	if method == nil || method.Name == nil || !method.Pub {
		return
	}
	if isOperatorMethod(method.Name.Name) {
		return
	}

	for _, contract := range c.typeContracts[targetName] {
		if c.contractMethods[contract][method.Name.Name] {
			return
		}
	}

	c.reportMissingContract(targetName, method)
}

func (c *Checker) reportMissingContract(targetName string, method *ast.FnDecl) {
	msg := fmt.Sprintf("public method `%s` on `%s` must be declared in a contract", method.Name.Name, targetName)
	help := fmt.Sprintf(
		"declare a contract and implement it:\n\ncontract %sOps {\n    fn %s(...);\n}\n\nimpl %sOps for %s {\n    fn %s(...) { ... }\n}",
		targetName, method.Name.Name, targetName, targetName, method.Name.Name,
	)

	d := diag.Diagnostic{
		Stage:    diag.StageVisibility,
		Severity: diag.SeverityError,
		Code:     diag.CodeVisibilityMissingContract,
		Message:  msg,
		Help:     help,
	}
	c.Errors = append(c.Errors, d.WithPrimarySpan(toDiagSpan(method.Span()), "not declared by any implemented contract"))
}

func typeExprName(t ast.TypeExpr) string {
	switch te := t.(type) {
	case *ast.NamedType:
		if te.Name != nil {
			return te.Name.Name
		}
	case *ast.GenericTypeExpr:
		return typeExprName(te.Base)
	case *ast.GenericType:
		return typeExprName(te.Base)
	}
	return ""
}

func toDiagSpan(s lexer.Span) diag.Span {
	return diag.Span{
		Filename: s.Filename,
		Line:     s.Line,
		Column:   s.Column,
		Start:    s.Start,
		End:      s.End,
	}
}

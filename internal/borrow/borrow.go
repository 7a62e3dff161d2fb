// Package borrow implements the three independent ownership-analysis
// phases that run over a checked function body: move tracking, borrow
// rules, and lifetime/scope checking. Each phase owns its own state and
// reports through the shared diagnostic engine; none of them mutate the
// AST, matching the type checker's read-only walk in internal/types.
package borrow

import (
	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/diag"
)

// Checker runs all three borrow-analysis phases over every function in
// a file and accumulates their diagnostics.
type Checker struct {
	Errors []diag.Diagnostic
}

// NewChecker creates an empty borrow checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check analyzes every function declaration and trait-impl method body
// in file, returning the accumulated diagnostics (also available as
// c.Errors).
func (c *Checker) Check(file *ast.File) []diag.Diagnostic {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FnDecl:
			c.checkFunction(d)
		case *ast.ImplDecl:
			for _, m := range d.Methods {
				c.checkFunction(m)
			}
		case *ast.TraitDecl:
			// Trait method signatures carry no body; nothing to check.
		}
	}
	return c.Errors
}

func (c *Checker) checkFunction(fn *ast.FnDecl) {
	if fn == nil || fn.Body == nil {
		return
	}

	mc := newMoveChecker(c)
	for _, p := range fn.Params {
		mc.declareParam(p)
	}
	mc.checkBlock(fn.Body)

	br := newBorrowRulesChecker(c)
	br.checkBlock(fn.Body)

	lc := newLifetimeChecker(c)
	for _, p := range fn.Params {
		if p.Name != nil {
			lc.depth[p.Name.Name] = 1
		}
	}
	lc.checkFunctionBody(fn.Body)
}

// baseIdent returns the root identifier a place expression refers to,
// e.g. `a.b[0]` and `*a` both resolve to `a`. Returns nil if expr isn't
// rooted in a plain variable (a temporary, for instance).
func baseIdent(expr ast.Expr) *ast.Ident {
	switch e := expr.(type) {
	case *ast.Ident:
		return e
	case *ast.FieldExpr:
		return baseIdent(e.Target)
	case *ast.IndexExpr:
		return baseIdent(e.Target)
	case *ast.PrefixExpr:
		return baseIdent(e.Expr)
	default:
		return nil
	}
}

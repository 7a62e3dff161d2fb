package borrow

import (
	"fmt"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/diag"
	"github.com/vex-lang/vexc/internal/lexer"
)

// lifetimeChecker catches the simplest, most common dangling-reference
// mistake: returning `&local` or `&mut local` where local was declared
// inside the function rather than received as a parameter. Function
// parameters sit at depth 1; the function's own body block is depth 2,
// and each nested block adds one. A returned reference to anything
// declared below depth 1 cannot outlive the call, since its storage is
// the callee's stack frame.
type lifetimeChecker struct {
	owner *Checker
	depth map[string]int
	cur   int
}

func newLifetimeChecker(owner *Checker) *lifetimeChecker {
	return &lifetimeChecker{owner: owner, depth: make(map[string]int), cur: 1}
}

func (lc *lifetimeChecker) checkFunctionBody(b *ast.BlockExpr) {
	lc.cur = 2
	lc.checkBlock(b)
}

func (lc *lifetimeChecker) checkBlock(b *ast.BlockExpr) {
	if b == nil {
		return
	}
	declared := make([]string, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		lc.checkStmt(s, &declared)
	}
	if b.Tail != nil {
		lc.checkExpr(b.Tail)
	}
	for _, name := range declared {
		delete(lc.depth, name)
	}
}

func (lc *lifetimeChecker) enterNested(body *ast.BlockExpr) {
	lc.cur++
	lc.checkBlock(body)
	lc.cur--
}

func (lc *lifetimeChecker) checkStmt(s ast.Stmt, declared *[]string) {
	switch st := s.(type) {
	case *ast.LetStmt:
		if st.Value != nil {
			lc.checkExpr(st.Value)
		}
		if st.Name != nil {
			lc.depth[st.Name.Name] = lc.cur
			*declared = append(*declared, st.Name.Name)
		}
	case *ast.ExprStmt:
		lc.checkExpr(st.Expr)
	case *ast.ReturnStmt:
		if st.Value != nil {
			lc.checkReturnValue(st.Value)
		}
	case *ast.IfStmt:
		for _, cl := range st.Clauses {
			lc.checkExpr(cl.Condition)
			lc.enterNested(cl.Body)
		}
		if st.Else != nil {
			lc.enterNested(st.Else)
		}
	case *ast.WhileStmt:
		lc.checkExpr(st.Condition)
		lc.enterNested(st.Body)
	case *ast.ForStmt:
		lc.checkExpr(st.Iterable)
		lc.enterNested(st.Body)
	case *ast.SpawnStmt:
		if st.Call != nil {
			lc.checkExpr(st.Call)
		}
		if st.Block != nil {
			lc.enterNested(st.Block)
		}
	}
}

// checkExpr recurses through an expression purely to find nested
// returns (inside if/match used as expressions) and reference-taking
// subexpressions; it does not itself flag anything.
func (lc *lifetimeChecker) checkExpr(e ast.Expr) {
	switch ex := e.(type) {
	case nil:
	case *ast.IfExpr:
		for _, cl := range ex.Clauses {
			lc.checkExpr(cl.Condition)
			lc.enterNested(cl.Body)
		}
		if ex.Else != nil {
			lc.enterNested(ex.Else)
		}
	case *ast.MatchExpr:
		lc.checkExpr(ex.Subject)
		for _, arm := range ex.Arms {
			lc.enterNested(arm.Body)
		}
	case *ast.BlockExpr:
		lc.enterNested(ex)
	case *ast.UnsafeBlock:
		lc.enterNested(ex.Block)
	case *ast.CallExpr:
		lc.checkExpr(ex.Callee)
		for _, a := range ex.Args {
			lc.checkExpr(a)
		}
	case *ast.InfixExpr:
		lc.checkExpr(ex.Left)
		lc.checkExpr(ex.Right)
	case *ast.PrefixExpr:
		lc.checkExpr(ex.Expr)
	case *ast.FieldExpr:
		lc.checkExpr(ex.Target)
	case *ast.IndexExpr:
		lc.checkExpr(ex.Target)
	}
}

// checkReturnValue inspects a returned expression for a direct
// `&local`/`&mut local` pattern and reports an escape if local's
// declaration depth is deeper than the function's parameters.
func (lc *lifetimeChecker) checkReturnValue(e ast.Expr) {
	if pre, ok := e.(*ast.PrefixExpr); ok && (pre.Op == lexer.AMPERSAND || pre.Op == lexer.REF_MUT) {
		if id := baseIdent(pre.Expr); id != nil {
			if d, ok := lc.depth[id.Name]; ok && d > 1 {
				lc.owner.reportReturnLocalReference(id.Name, e.Span())
			}
		}
		return
	}
	lc.checkExpr(e)
}

func (c *Checker) reportReturnLocalReference(name string, span lexer.Span) {
	d := diag.Diagnostic{
		Stage:    diag.StageBorrow,
		Severity: diag.SeverityError,
		Code:     diag.CodeBorrowLifetimeEscape,
		Message:  fmt.Sprintf("cannot return a reference to local variable `%s`", name),
		Help:     "the referenced value is dropped at the end of this function",
	}
	c.Errors = append(c.Errors, d.WithPrimarySpan(toDiagSpan(span), "returns a reference to data owned by this function"))
}

package borrow

import (
	"fmt"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/diag"
	"github.com/vex-lang/vexc/internal/lexer"
)

// borrowKind distinguishes a shared (immutable) borrow from an
// exclusive (mutable) one.
type borrowKind int

const (
	borrowShared borrowKind = iota
	borrowExclusive
)

type liveBorrow struct {
	kind borrowKind
	span lexer.Span
}

// borrowRulesChecker enforces shared-xor-exclusive borrowing: a
// variable may have any number of live shared (`&`) borrows, or exactly
// one live exclusive (`&mut`) borrow, never both at once. Borrows are
// lexically scoped: entering a block saves the current table, leaving
// it restores the table as it was (any borrow taken inside the block
// cannot outlive it).
type borrowRulesChecker struct {
	owner *Checker
	live  map[string][]liveBorrow
}

func newBorrowRulesChecker(owner *Checker) *borrowRulesChecker {
	return &borrowRulesChecker{owner: owner, live: make(map[string][]liveBorrow)}
}

func (bc *borrowRulesChecker) snapshot() map[string][]liveBorrow {
	cp := make(map[string][]liveBorrow, len(bc.live))
	for k, v := range bc.live {
		dup := make([]liveBorrow, len(v))
		copy(dup, v)
		cp[k] = dup
	}
	return cp
}

func (bc *borrowRulesChecker) checkBlock(b *ast.BlockExpr) {
	if b == nil {
		return
	}
	saved := bc.snapshot()
	for _, s := range b.Stmts {
		bc.checkStmt(s)
	}
	if b.Tail != nil {
		bc.walkExpr(b.Tail)
	}
	bc.live = saved
}

func (bc *borrowRulesChecker) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		if st.Value != nil {
			bc.walkExpr(st.Value)
		}
	case *ast.ExprStmt:
		bc.walkExpr(st.Expr)
	case *ast.ReturnStmt:
		if st.Value != nil {
			bc.walkExpr(st.Value)
		}
	case *ast.IfStmt:
		for _, cl := range st.Clauses {
			bc.walkExpr(cl.Condition)
			bc.checkBlock(cl.Body)
		}
		if st.Else != nil {
			bc.checkBlock(st.Else)
		}
	case *ast.WhileStmt:
		bc.walkExpr(st.Condition)
		bc.checkBlock(st.Body)
	case *ast.ForStmt:
		bc.walkExpr(st.Iterable)
		bc.checkBlock(st.Body)
	case *ast.SpawnStmt:
		if st.Call != nil {
			bc.walkExpr(st.Call)
		}
		if st.Block != nil {
			bc.checkBlock(st.Block)
		}
	}
}

// walkExpr descends through expr looking for `&`/`&mut` borrow sites
// and assignments, checking each against the live-borrow table before
// recording new borrows or invalidating old ones.
func (bc *borrowRulesChecker) walkExpr(e ast.Expr) {
	switch ex := e.(type) {
	case nil:
	case *ast.PrefixExpr:
		if ex.Op == lexer.AMPERSAND || ex.Op == lexer.REF_MUT {
			if id := baseIdent(ex.Expr); id != nil {
				bc.takeBorrow(id, ex.Op == lexer.REF_MUT, ex.Span())
				return
			}
		}
		bc.walkExpr(ex.Expr)
	case *ast.InfixExpr:
		bc.walkExpr(ex.Left)
		bc.walkExpr(ex.Right)
	case *ast.AssignExpr:
		bc.walkExpr(ex.Value)
		if id := baseIdent(ex.Target); id != nil {
			if borrows, ok := bc.live[id.Name]; ok && len(borrows) > 0 {
				bc.owner.reportMutationWhileBorrowed(id.Name, ex.Span())
			}
		}
	case *ast.CallExpr:
		bc.walkExpr(ex.Callee)
		for _, a := range ex.Args {
			bc.walkExpr(a)
		}
	case *ast.FieldExpr:
		bc.walkExpr(ex.Target)
	case *ast.IndexExpr:
		bc.walkExpr(ex.Target)
		for _, i := range ex.Indices {
			bc.walkExpr(i)
		}
	case *ast.ArrayLiteral:
		for _, el := range ex.Elements {
			bc.walkExpr(el)
		}
	case *ast.MapLiteral:
		for _, entry := range ex.Entries {
			bc.walkExpr(entry.Key)
			bc.walkExpr(entry.Value)
		}
	case *ast.StructLiteral:
		for _, f := range ex.Fields {
			bc.walkExpr(f.Value)
		}
	case *ast.TupleLiteral:
		for _, el := range ex.Elements {
			bc.walkExpr(el)
		}
	case *ast.IfExpr:
		for _, cl := range ex.Clauses {
			bc.walkExpr(cl.Condition)
			bc.checkBlock(cl.Body)
		}
		if ex.Else != nil {
			bc.checkBlock(ex.Else)
		}
	case *ast.MatchExpr:
		bc.walkExpr(ex.Subject)
		for _, arm := range ex.Arms {
			bc.checkBlock(arm.Body)
		}
	case *ast.BlockExpr:
		bc.checkBlock(ex)
	case *ast.UnsafeBlock:
		// §4.3.2: unsafe does not itself weaken the borrow rules, it
		// only permits raw pointer arithmetic and FFI; keep checking.
		bc.checkBlock(ex.Block)
	case *ast.FunctionLiteral:
		inner := newBorrowRulesChecker(bc.owner)
		inner.checkBlock(ex.Body)
	}
}

func (bc *borrowRulesChecker) takeBorrow(id *ast.Ident, mutable bool, span lexer.Span) {
	existing := bc.live[id.Name]
	hasExclusive := false
	hasShared := false
	for _, b := range existing {
		if b.kind == borrowExclusive {
			hasExclusive = true
		} else {
			hasShared = true
		}
	}

	switch {
	case mutable && (hasExclusive || hasShared):
		bc.owner.reportMutableBorrowWhileBorrowed(id.Name, span)
	case !mutable && hasExclusive:
		bc.owner.reportImmutableBorrowWhileMutableBorrowed(id.Name, span)
	}

	kind := borrowShared
	if mutable {
		kind = borrowExclusive
	}
	bc.live[id.Name] = append(existing, liveBorrow{kind: kind, span: span})
}

func (c *Checker) reportMutableBorrowWhileBorrowed(name string, span lexer.Span) {
	d := diag.Diagnostic{
		Stage:    diag.StageBorrow,
		Severity: diag.SeverityError,
		Code:     diag.CodeBorrowConflict,
		Message:  fmt.Sprintf("cannot borrow `%s` as mutable because it is already borrowed", name),
	}
	c.Errors = append(c.Errors, d.WithPrimarySpan(toDiagSpan(span), "second borrow occurs here"))
}

func (c *Checker) reportImmutableBorrowWhileMutableBorrowed(name string, span lexer.Span) {
	d := diag.Diagnostic{
		Stage:    diag.StageBorrow,
		Severity: diag.SeverityError,
		Code:     diag.CodeBorrowConflict,
		Message:  fmt.Sprintf("cannot borrow `%s` as immutable because it is already borrowed as mutable", name),
	}
	c.Errors = append(c.Errors, d.WithPrimarySpan(toDiagSpan(span), "immutable borrow occurs here"))
}

func (c *Checker) reportMutationWhileBorrowed(name string, span lexer.Span) {
	d := diag.Diagnostic{
		Stage:    diag.StageBorrow,
		Severity: diag.SeverityError,
		Code:     diag.CodeBorrowConflict,
		Message:  fmt.Sprintf("cannot assign to `%s` because it is borrowed", name),
	}
	c.Errors = append(c.Errors, d.WithPrimarySpan(toDiagSpan(span), "assignment occurs here while borrowed"))
}

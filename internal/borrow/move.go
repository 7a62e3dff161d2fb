package borrow

import (
	"fmt"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/diag"
	"github.com/vex-lang/vexc/internal/lexer"
)

// moveChecker tracks which local bindings currently own a live value
// versus having had that value moved out from under them, reporting a
// use-after-move diagnostic the moment a moved binding is read again.
type moveChecker struct {
	owner *Checker
	moved map[string]lexer.Span // name -> span of the move, absent if still valid
	copy  map[string]bool       // name -> true if its type is Copy (never moves)
}

func newMoveChecker(owner *Checker) *moveChecker {
	return &moveChecker{
		owner: owner,
		moved: make(map[string]lexer.Span),
		copy:  make(map[string]bool),
	}
}

// copyPrimitives lists the built-in types that are copied on assignment
// rather than moved; everything else (structs, enums, strings, generic
// params) defaults to move semantics per the ownership model.
var copyPrimitives = map[string]bool{
	"int": true, "float": true, "bool": true, "byte": true, "char": true,
}

func (mc *moveChecker) declareParam(p *ast.Param) {
	if p == nil || p.Name == nil {
		return
	}
	mc.copy[p.Name.Name] = isCopyType(p.Type)
}

func isCopyType(t ast.TypeExpr) bool {
	named, ok := t.(*ast.NamedType)
	if !ok || named.Name == nil {
		return false
	}
	return copyPrimitives[named.Name.Name]
}

// snapshot captures the current moved-set so a conditional branch can be
// explored independently and merged back afterward.
func (mc *moveChecker) snapshot() map[string]lexer.Span {
	cp := make(map[string]lexer.Span, len(mc.moved))
	for k, v := range mc.moved {
		cp[k] = v
	}
	return cp
}

// mergeBranches restores mc.moved to the intersection of the given
// branch outcomes: a variable only counts as moved after the whole
// if/else chain if every branch moved it, avoiding false positives on
// paths where it was never touched.
func (mc *moveChecker) mergeBranches(branches []map[string]lexer.Span) {
	if len(branches) == 0 {
		return
	}
	merged := make(map[string]lexer.Span)
	for name, span := range branches[0] {
		inAll := true
		for _, b := range branches[1:] {
			if _, ok := b[name]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			merged[name] = span
		}
	}
	mc.moved = merged
}

func (mc *moveChecker) checkBlock(b *ast.BlockExpr) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		mc.checkStmt(s)
	}
	if b.Tail != nil {
		mc.readExpr(b.Tail)
	}
}

func (mc *moveChecker) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		if st.Value != nil {
			mc.readExpr(st.Value)
		}
		if st.Name != nil {
			mc.copy[st.Name.Name] = st.Type != nil && isCopyType(st.Type)
			delete(mc.moved, st.Name.Name)
			if mc.isMoveType(st.Name.Name) {
				if id, ok := st.Value.(*ast.Ident); ok {
					mc.markMoved(id.Name, id.Span())
				}
			}
		}
	case *ast.ExprStmt:
		mc.readExpr(st.Expr)
	case *ast.ReturnStmt:
		if st.Value != nil {
			mc.readExpr(st.Value)
		}
	case *ast.IfStmt:
		var branches []map[string]lexer.Span
		base := mc.snapshot()
		for _, cl := range st.Clauses {
			mc.readExpr(cl.Condition)
			mc.moved = mc.cloneSnapshot(base)
			mc.checkBlock(cl.Body)
			branches = append(branches, mc.snapshot())
		}
		mc.moved = mc.cloneSnapshot(base)
		if st.Else != nil {
			mc.checkBlock(st.Else)
		}
		branches = append(branches, mc.snapshot())
		mc.mergeBranches(branches)
	case *ast.WhileStmt:
		mc.readExpr(st.Condition)
		mc.checkBlock(st.Body)
	case *ast.ForStmt:
		mc.readExpr(st.Iterable)
		if st.Iterator != nil {
			delete(mc.moved, st.Iterator.Name)
		}
		mc.checkBlock(st.Body)
	case *ast.BreakStmt, *ast.ContinueStmt:
	case *ast.SpawnStmt:
		if st.Call != nil {
			mc.readExpr(st.Call)
		}
		if st.Block != nil {
			mc.checkBlock(st.Block)
		}
		for _, a := range st.Args {
			mc.readExpr(a)
		}
	case *ast.SelectStmt:
		// Select arms each run in their own hypothetical world; a
		// conservative snapshot/restore per arm keeps this simple.
		base := mc.snapshot()
		for _, c := range st.Cases {
			mc.moved = mc.cloneSnapshot(base)
			if c.Comm != nil {
				mc.checkStmt(c.Comm)
			}
			mc.checkBlock(c.Body)
		}
		mc.moved = mc.cloneSnapshot(base)
	}
}

func (mc *moveChecker) cloneSnapshot(src map[string]lexer.Span) map[string]lexer.Span {
	cp := make(map[string]lexer.Span, len(src))
	for k, v := range src {
		cp[k] = v
	}
	return cp
}

func (mc *moveChecker) isMoveType(name string) bool {
	if mc.copy[name] {
		return false
	}
	return true
}

func (mc *moveChecker) markMoved(name string, span lexer.Span) {
	if name == "" || mc.copy[name] {
		return
	}
	mc.moved[name] = span
}

// readExpr walks expr looking for reads of already-moved bindings, and
// records new moves produced by this expression (e.g. passing a
// move-type local by value into a call).
func (mc *moveChecker) readExpr(e ast.Expr) {
	switch ex := e.(type) {
	case nil:
	case *ast.Ident:
		if span, ok := mc.moved[ex.Name]; ok {
			mc.owner.reportUseAfterMove(ex.Name, ex.Span(), span)
		}
	case *ast.PrefixExpr:
		// Taking a reference/dereferencing reads the place but never
		// consumes it; an address-of a moved-out variable is still
		// reported since the referent no longer has a valid value.
		if ex.Op == lexer.AMPERSAND || ex.Op == lexer.REF_MUT {
			if id, ok := ex.Expr.(*ast.Ident); ok {
				if span, ok := mc.moved[id.Name]; ok {
					mc.owner.reportUseAfterMove(id.Name, ex.Span(), span)
				}
				return
			}
		}
		mc.readExpr(ex.Expr)
	case *ast.InfixExpr:
		mc.readExpr(ex.Left)
		mc.readExpr(ex.Right)
	case *ast.AssignExpr:
		mc.readExpr(ex.Value)
		if id, ok := ex.Target.(*ast.Ident); ok {
			delete(mc.moved, id.Name)
			if mc.isMoveType(id.Name) {
				if rid, ok := ex.Value.(*ast.Ident); ok {
					mc.markMoved(rid.Name, rid.Span())
				}
			}
		} else {
			mc.readExpr(ex.Target)
		}
	case *ast.CallExpr:
		mc.readExpr(ex.Callee)
		for _, a := range ex.Args {
			mc.readExpr(a)
			if id, ok := a.(*ast.Ident); ok && mc.isMoveType(id.Name) {
				mc.markMoved(id.Name, id.Span())
			}
		}
	case *ast.FieldExpr:
		mc.readExpr(ex.Target)
	case *ast.IndexExpr:
		mc.readExpr(ex.Target)
		for _, i := range ex.Indices {
			mc.readExpr(i)
		}
	case *ast.ArrayLiteral:
		for _, el := range ex.Elements {
			mc.readExpr(el)
		}
	case *ast.MapLiteral:
		for _, entry := range ex.Entries {
			mc.readExpr(entry.Key)
			mc.readExpr(entry.Value)
		}
	case *ast.StructLiteral:
		for _, f := range ex.Fields {
			mc.readExpr(f.Value)
		}
	case *ast.TupleLiteral:
		for _, el := range ex.Elements {
			mc.readExpr(el)
		}
	case *ast.IfExpr:
		var branches []map[string]lexer.Span
		base := mc.snapshot()
		for _, cl := range ex.Clauses {
			mc.readExpr(cl.Condition)
			mc.moved = mc.cloneSnapshot(base)
			mc.checkBlock(cl.Body)
			branches = append(branches, mc.snapshot())
		}
		mc.moved = mc.cloneSnapshot(base)
		if ex.Else != nil {
			mc.checkBlock(ex.Else)
		}
		branches = append(branches, mc.snapshot())
		mc.mergeBranches(branches)
	case *ast.MatchExpr:
		mc.readExpr(ex.Subject)
		base := mc.snapshot()
		var branches []map[string]lexer.Span
		for _, arm := range ex.Arms {
			mc.moved = mc.cloneSnapshot(base)
			mc.checkBlock(arm.Body)
			branches = append(branches, mc.snapshot())
		}
		mc.mergeBranches(branches)
	case *ast.BlockExpr:
		mc.checkBlock(ex)
	case *ast.UnsafeBlock:
		mc.checkBlock(ex.Block)
	case *ast.FunctionLiteral:
		inner := newMoveChecker(mc.owner)
		for _, p := range ex.Params {
			inner.declareParam(p)
		}
		inner.checkBlock(ex.Body)
	default:
		// Literals and other leaf expressions carry nothing to move.
	}
}

func (c *Checker) reportUseAfterMove(name string, use lexer.Span, movedAt lexer.Span) {
	d := diag.Diagnostic{
		Stage:    diag.StageBorrow,
		Severity: diag.SeverityError,
		Code:     diag.CodeBorrowUseAfterMove,
		Message:  fmt.Sprintf("use of moved value: `%s`", name),
		Notes:    []string{fmt.Sprintf("`%s` was moved here", name)},
	}
	d = d.WithPrimarySpan(toDiagSpan(use), fmt.Sprintf("`%s` used here after being moved", name))
	if movedAt.Line > 0 {
		d = d.WithSecondarySpan(toDiagSpan(movedAt), "value moved here")
	}
	c.Errors = append(c.Errors, d)
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

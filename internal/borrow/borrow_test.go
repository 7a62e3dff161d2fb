package borrow_test

import (
	"testing"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/borrow"
	"github.com/vex-lang/vexc/internal/diag"
	"github.com/vex-lang/vexc/internal/parser"
)

func parseOK(t *testing.T, src string) *ast.File {
	t.Helper()
	p := parser.New(src)
	file := p.ParseFile()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}
	return file
}

func codesOf(diags []diag.Diagnostic) []diag.Code {
	codes := make([]diag.Code, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
	}
	return codes
}

func TestMoveChecker_MultipleSharedBorrowsOK(t *testing.T) {
	file := parseOK(t, `
package foo;

fn use_it(x: int) {}

fn main() {
	let s: string = "hi";
	let a = &s;
	let b = &s;
	use_it(1);
}
`)

	errs := borrow.NewChecker().Check(file)
	if len(errs) != 0 {
		t.Fatalf("expected no diagnostics, got %v", codesOf(errs))
	}
}

func TestMoveChecker_UseAfterMove(t *testing.T) {
	file := parseOK(t, `
package foo;

fn consume(s: string) {}

fn main() {
	let s: string = "hi";
	consume(s);
	consume(s);
}
`)

	errs := borrow.NewChecker().Check(file)
	if len(errs) == 0 {
		t.Fatalf("expected a use-after-move diagnostic")
	}
	if errs[0].Code != diag.CodeBorrowUseAfterMove {
		t.Fatalf("expected CodeBorrowUseAfterMove, got %s", errs[0].Code)
	}
}

func TestBorrowRules_MutableWhileBorrowed(t *testing.T) {
	file := parseOK(t, `
package foo;

fn main() {
	let x: int = 1;
	let r = &x;
	let m = &mut x;
}
`)

	errs := borrow.NewChecker().Check(file)
	found := false
	for _, d := range errs {
		if d.Code == diag.CodeBorrowConflict {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected CodeBorrowConflict, got %v", codesOf(errs))
	}
}

func TestBorrowRules_BorrowReleasedAtBlockEnd(t *testing.T) {
	file := parseOK(t, `
package foo;

fn main() {
	let x: int = 1;
	if true {
		let r = &x;
	}
	let m = &mut x;
}
`)

	errs := borrow.NewChecker().Check(file)
	if len(errs) != 0 {
		t.Fatalf("expected no diagnostics, got %v", codesOf(errs))
	}
}

func TestLifetimeChecker_ReturnLocalReference(t *testing.T) {
	file := parseOK(t, `
package foo;

fn dangling() {
	let x: int = 1;
	return &x;
}
`)

	errs := borrow.NewChecker().Check(file)
	found := false
	for _, d := range errs {
		if d.Code == diag.CodeBorrowLifetimeEscape {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected CodeBorrowLifetimeEscape, got %v", codesOf(errs))
	}
}

func TestLifetimeChecker_ReturnParamReferenceOK(t *testing.T) {
	file := parseOK(t, `
package foo;

fn identity(x: int) {
	return &x;
}
`)

	errs := borrow.NewChecker().Check(file)
	if len(errs) != 0 {
		t.Fatalf("expected no diagnostics, got %v", codesOf(errs))
	}
}

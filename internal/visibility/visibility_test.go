package visibility_test

import (
	"testing"

	"github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/diag"
	"github.com/vex-lang/vexc/internal/parser"
	"github.com/vex-lang/vexc/internal/visibility"
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

func TestVisibility_PublicMethodBackedByContractOK(t *testing.T) {
	file := parseOK(t, `
package foo;

trait Printable {
	fn print();
}

impl Printable for Point {
	pub fn print() {
		return;
	}
}
`)

	errs := visibility.NewChecker().Check(file)
	if len(errs) != 0 {
		t.Fatalf("expected no diagnostics, got %v", errs)
	}
}

func TestVisibility_PublicMethodMissingContract(t *testing.T) {
	file := parseOK(t, `
package foo;

impl Point {
	pub fn area() {
		return;
	}
}
`)

	errs := visibility.NewChecker().Check(file)
	if len(errs) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(errs))
	}
	if errs[0].Code != diag.CodeVisibilityMissingContract {
		t.Fatalf("expected CodeVisibilityMissingContract, got %s", errs[0].Code)
	}
}

func TestVisibility_PrivateMethodExempt(t *testing.T) {
	file := parseOK(t, `
package foo;

impl Point {
	fn helper() {
		return;
	}
}
`)

	errs := visibility.NewChecker().Check(file)
	if len(errs) != 0 {
		t.Fatalf("expected no diagnostics for a non-pub method, got %v", errs)
	}
}

func TestVisibility_OperatorMethodExempt(t *testing.T) {
	file := parseOK(t, `
package foo;

impl Point {
	pub fn op() {
		return;
	}
}
`)

	errs := visibility.NewChecker().Check(file)
	if len(errs) != 0 {
		t.Fatalf("expected no diagnostics for an operator method, got %v", errs)
	}
}

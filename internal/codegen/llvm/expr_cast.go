package llvm

import (
	"fmt"

	mast "github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/types"
)

// genCastExpr lowers an explicit `expr as Type` cast to the matching LLVM
// conversion instruction. Unlike implicit assignment, an explicit cast never
// consults the coercion lattice: the checker already resolved and recorded
// the target type, so codegen only has to pick sext/zext/trunc/fp* based on
// the source and destination primitive kinds.
func (g *LLVMGenerator) genCastExpr(e *mast.CastExpr) (string, error) {
	srcReg, err := g.genExpr(e.Expr)
	if err != nil {
		return "", err
	}

	srcType := g.getTypeFromInfo(e.Expr, &types.Primitive{Kind: types.Int})
	dstType := g.getTypeFromInfo(e, &types.Primitive{Kind: types.Int})

	srcLLVM, err := g.mapTypeOrError(srcType, e.Expr, "cast source")
	if err != nil {
		return "", err
	}
	dstLLVM, err := g.mapTypeOrError(dstType, e, "cast target")
	if err != nil {
		return "", err
	}
	if srcLLVM == dstLLVM {
		return srcReg, nil
	}

	srcPrim, srcOk := srcType.(*types.Primitive)
	dstPrim, dstOk := dstType.(*types.Primitive)
	if !srcOk || !dstOk {
		resultReg := g.nextReg()
		g.emit(fmt.Sprintf("  %s = bitcast %s %s to %s", resultReg, srcLLVM, srcReg, dstLLVM))
		return resultReg, nil
	}

	resultReg := g.nextReg()
	srcIsInt := srcPrim.Kind.IsInteger() || srcPrim.Kind == types.Int
	dstIsInt := dstPrim.Kind.IsInteger() || dstPrim.Kind == types.Int
	srcIsFloat := srcPrim.Kind.IsFloat() || srcPrim.Kind == types.Float
	dstIsFloat := dstPrim.Kind.IsFloat() || dstPrim.Kind == types.Float

	switch {
	case srcIsFloat && dstIsInt:
		op := "fptosi"
		if dstPrim.Kind.IsUnsigned() {
			op = "fptoui"
		}
		g.emit(fmt.Sprintf("  %s = %s %s %s to %s", resultReg, op, srcLLVM, srcReg, dstLLVM))
	case srcIsInt && dstIsFloat:
		op := "sitofp"
		if srcPrim.Kind.IsUnsigned() {
			op = "uitofp"
		}
		g.emit(fmt.Sprintf("  %s = %s %s %s to %s", resultReg, op, srcLLVM, srcReg, dstLLVM))
	case srcIsFloat && dstIsFloat:
		if dstPrim.Kind.Width() > srcPrim.Kind.Width() {
			g.emit(fmt.Sprintf("  %s = fpext %s %s to %s", resultReg, srcLLVM, srcReg, dstLLVM))
		} else {
			g.emit(fmt.Sprintf("  %s = fptrunc %s %s to %s", resultReg, srcLLVM, srcReg, dstLLVM))
		}
	case srcIsInt && dstIsInt:
		if dstPrim.Kind.Width() > srcPrim.Kind.Width() {
			op := "zext"
			if srcPrim.Kind.IsSigned() {
				op = "sext"
			}
			g.emit(fmt.Sprintf("  %s = %s %s %s to %s", resultReg, op, srcLLVM, srcReg, dstLLVM))
		} else {
			g.emit(fmt.Sprintf("  %s = trunc %s %s to %s", resultReg, srcLLVM, srcReg, dstLLVM))
		}
	default:
		g.emit(fmt.Sprintf("  %s = bitcast %s %s to %s", resultReg, srcLLVM, srcReg, dstLLVM))
	}
	return resultReg, nil
}

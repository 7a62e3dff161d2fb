package llvm

import (
	"fmt"
	"strings"

	mast "github.com/vex-lang/vexc/internal/ast"
	"github.com/vex-lang/vexc/internal/types"
)

// stripNumericLiteralText removes digit-separator underscores and an
// explicit width suffix (e.g. "1_000_i64" -> "1000", "2.5_f32" -> "2.5") so
// the text is a bare LLVM-legal numeric constant.
func stripNumericLiteralText(text string) string {
	if idx := strings.LastIndexByte(text, '_'); idx >= 0 {
		suffix := text[idx+1:]
		if _, ok := literalSuffixWidths[suffix]; ok {
			text = text[:idx]
		}
	}
	return strings.ReplaceAll(text, "_", "")
}

// literalSuffixWidths mirrors the suffix set of internal/types' unexported
// literalSuffixKinds.
var literalSuffixWidths = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f16": true, "f32": true, "f64": true, "f128": true,
}

// genIntegerLiteral generates code for an integer literal.
func (g *LLVMGenerator) genIntegerLiteral(lit *mast.IntegerLit) (string, error) {
	// Integer literals are constants, return the value directly
	// In LLVM IR, we'll use the value as-is in instructions
	return stripNumericLiteralText(lit.Text), nil
}

// genFloatLiteral generates code for a float literal.
func (g *LLVMGenerator) genFloatLiteral(lit *mast.FloatLit) (string, error) {
	return stripNumericLiteralText(lit.Text), nil
}

// genStringLiteral generates code for a string literal.
func (g *LLVMGenerator) genStringLiteral(lit *mast.StringLit) (string, error) {
	// Create a global string constant and box it with vex_string_from_bytes
	lenVal := int64(len(lit.Value))

	// Create a unique global name for this string literal
	globalName := fmt.Sprintf("@str_lit_%d", g.regCounter)
	g.regCounter++ // Use counter to ensure uniqueness

	// Emit global string constant at module level (not inside function)
	escaped := escapeStringForLLVM(lit.Value)
	globalDecl := fmt.Sprintf("%s = private unnamed_addr constant [%d x i8] c\"%s\\00\"",
		globalName, lenVal+1, escaped)

	// Only emit if not already emitted (deduplication)
	if !g.globalNames[globalName] {
		g.emitGlobal(globalDecl)
		g.globalNames[globalName] = true
	}

	// Get pointer to the string data
	strPtrReg := g.nextReg()
	g.emit(fmt.Sprintf("  %s = getelementptr inbounds [%d x i8], [%d x i8]* %s, i64 0, i64 0",
		strPtrReg, lenVal+1, lenVal+1, globalName))

	resultReg := g.nextReg()
	g.emit(fmt.Sprintf("  %s = call %%String* @vex_string_from_bytes(i8* %s, i64 %d)",
		resultReg, strPtrReg, lenVal))

	return resultReg, nil
}

// boolStringConstants lazily emits the two module-level byte buffers
// backing the bool-to-string conversion's constant "true"/"false"
// strings (spec calls for selecting between the two constants rather
// than a per-call runtime conversion).
func (g *LLVMGenerator) boolStringConstants() (truePtr, falsePtr string) {
	if !g.globalNames["@.str.bool.true"] {
		g.emitGlobal("@.str.bool.true = private unnamed_addr constant [5 x i8] c\"true\\00\"")
		g.globalNames["@.str.bool.true"] = true
	}
	if !g.globalNames["@.str.bool.false"] {
		g.emitGlobal("@.str.bool.false = private unnamed_addr constant [6 x i8] c\"false\\00\"")
		g.globalNames["@.str.bool.false"] = true
	}
	truePtr = g.nextReg()
	g.emit(fmt.Sprintf("  %s = getelementptr inbounds [5 x i8], [5 x i8]* @.str.bool.true, i64 0, i64 0", truePtr))
	falsePtr = g.nextReg()
	g.emit(fmt.Sprintf("  %s = getelementptr inbounds [6 x i8], [6 x i8]* @.str.bool.false, i64 0, i64 0", falsePtr))
	return truePtr, falsePtr
}

// escapeStringForLLVM escapes a string for use in LLVM IR string constants.
func escapeStringForLLVM(s string) string {
	result := ""
	for _, r := range s {
		switch r {
		case '\\':
			result += "\\5C"
		case '"':
			result += "\\22"
		case '\n':
			result += "\\0A"
		case '\t':
			result += "\\09"
		case '\r':
			result += "\\0D"
		default:
			if r >= 32 && r < 127 {
				result += string(r)
			} else {
				result += fmt.Sprintf("\\%02X", r)
			}
		}
	}
	return result
}

// genFStringLiteral generates code for a formatted-string literal by
// converting each interpolated expression to a %String* and concatenating
// all parts in source order via vex_strcat_new.
func (g *LLVMGenerator) genFStringLiteral(lit *mast.FStringLit) (string, error) {
	var resultReg string
	for _, part := range lit.Parts {
		var partReg string
		if part.Expr == nil {
			reg, err := g.genStringLiteral(mast.NewStringLit(part.Text, lit.Span()))
			if err != nil {
				return "", err
			}
			partReg = reg
		} else {
			exprReg, err := g.genExpr(part.Expr)
			if err != nil {
				return "", err
			}
			exprType := g.getTypeFromInfo(part.Expr, &types.Primitive{Kind: types.Int})
			converted, err := g.convertToStringPart(exprReg, exprType, part.Expr)
			if err != nil {
				return "", err
			}
			partReg = converted
		}
		if resultReg == "" {
			resultReg = partReg
			continue
		}
		next := g.nextReg()
		g.emit(fmt.Sprintf("  %s = call %%String* @vex_strcat_new(%%String* %s, %%String* %s)",
			next, resultReg, partReg))
		resultReg = next
	}
	if resultReg == "" {
		return g.genStringLiteral(mast.NewStringLit("", lit.Span()))
	}
	return resultReg, nil
}

// directStringConvFns are the spec's named per-width to-string helpers
// (§4.5.7): when a part's type matches one of these exactly, no widening
// is needed before the conversion call.
var directStringConvFns = map[types.PrimitiveKind]string{
	types.I32: "vex_i32_to_string",
	types.I64: "vex_i64_to_string",
	types.U32: "vex_u32_to_string",
	types.U64: "vex_u64_to_string",
	types.F32: "vex_f32_to_string",
	types.F64: "vex_f64_to_string",
}

// convertToStringPart lowers a value to a %String* for interpolation
// inside an f-string. Strings and pointers pass through unchanged
// (spec: "pointers are treated as already-string"); bools select
// between the constant "true"/"false" byte buffers and box the result
// rather than calling a dedicated conversion; everything else goes
// through the width-matched vex_{type}_to_string helper, widening to
// i64/f64 first for widths the spec doesn't name individually (an i128
// is truncated to i64 instead).
func (g *LLVMGenerator) convertToStringPart(reg string, typ types.Type, node mast.Node) (string, error) {
	prim, ok := typ.(*types.Primitive)
	if !ok {
		return reg, nil
	}
	switch {
	case prim.Kind == types.String:
		return reg, nil
	case prim.Kind == types.Bool:
		truePtr, falsePtr := g.boolStringConstants()
		ptrReg := g.nextReg()
		g.emit(fmt.Sprintf("  %s = select i1 %s, i8* %s, i8* %s", ptrReg, reg, truePtr, falsePtr))
		lenReg := g.nextReg()
		g.emit(fmt.Sprintf("  %s = select i1 %s, i64 4, i64 5", lenReg, reg))
		result := g.nextReg()
		g.emit(fmt.Sprintf("  %s = call %%String* @vex_string_from_bytes(i8* %s, i64 %s)", result, ptrReg, lenReg))
		return result, nil
	case prim.Kind.IsFloat():
		if fn, ok := directStringConvFns[prim.Kind]; ok {
			llvmType, err := g.mapTypeOrError(typ, node, "f-string interpolation")
			if err != nil {
				return "", err
			}
			result := g.nextReg()
			g.emit(fmt.Sprintf("  %s = call %%String* @%s(%s %s)", result, fn, llvmType, reg))
			return result, nil
		}
		llvmType, err := g.mapTypeOrError(typ, node, "f-string interpolation")
		if err != nil {
			return "", err
		}
		valReg := reg
		if llvmType != "double" {
			ext := g.nextReg()
			g.emit(fmt.Sprintf("  %s = fpext %s %s to double", ext, llvmType, reg))
			valReg = ext
		}
		result := g.nextReg()
		g.emit(fmt.Sprintf("  %s = call %%String* @vex_f64_to_string(double %s)", result, valReg))
		return result, nil
	case prim.Kind.IsInteger() || prim.Kind == types.Int:
		if fn, ok := directStringConvFns[prim.Kind]; ok {
			llvmType, err := g.mapTypeOrError(typ, node, "f-string interpolation")
			if err != nil {
				return "", err
			}
			result := g.nextReg()
			g.emit(fmt.Sprintf("  %s = call %%String* @%s(%s %s)", result, fn, llvmType, reg))
			return result, nil
		}
		llvmType, err := g.mapTypeOrError(typ, node, "f-string interpolation")
		if err != nil {
			return "", err
		}
		valReg := reg
		switch {
		case llvmType == "i64":
			// already the right width
		case llvmType == "i128":
			trunc := g.nextReg()
			g.emit(fmt.Sprintf("  %s = trunc %s %s to i64", trunc, llvmType, reg))
			valReg = trunc
		default:
			ext := g.nextReg()
			op := "zext"
			if prim.Kind.IsSigned() || prim.Kind == types.Int {
				op = "sext"
			}
			g.emit(fmt.Sprintf("  %s = %s %s %s to i64", ext, op, llvmType, reg))
			valReg = ext
		}
		result := g.nextReg()
		g.emit(fmt.Sprintf("  %s = call %%String* @vex_i64_to_string(i64 %s)", result, valReg))
		return result, nil
	default:
		return reg, nil
	}
}

// genBoolLiteral generates code for a boolean literal.
func (g *LLVMGenerator) genBoolLiteral(lit *mast.BoolLit) (string, error) {
	if lit.Value {
		return "1", nil
	}
	return "0", nil
}

// genNilLiteral generates code for a nil literal.
func (g *LLVMGenerator) genNilLiteral() (string, error) {
	return "null", nil
}

// genIdent generates code for an identifier (variable reference).
func (g *LLVMGenerator) genIdent(ident *mast.Ident) (string, error) {
	name := ident.Name

	// Check if it's a function parameter FIRST (before checking locals)
	// Parameters are already in registers and shouldn't be loaded
	if g.currentFunc != nil {
		for _, param := range g.currentFunc.params {
			if param.name == name {
				// Parameters are already in registers, just return the register name
				// Use sanitized name to match the function signature
				return "%" + sanitizeName(name), nil
			}
		}
	}

	// Check if it's a local variable (alloca)
	if reg, ok := g.locals[name]; ok {
		// Load the value from the alloca
		loadReg := g.nextReg()
		// Get type to determine load instruction (using helper function)
		typ := g.getTypeFromInfo(ident, &types.Primitive{Kind: types.Int})
		llvmType, err := g.mapTypeOrError(typ, ident, "variable load")
		if err != nil {
			return "", err
		}
		// Use opaque pointer syntax for LLVM 21+
		g.emit(fmt.Sprintf("  %s = load %s, ptr %s", loadReg, llvmType, reg))
		return loadReg, nil
	}

	// Try to find similar variable names for suggestion (using helper function)
	var similarNames []string
	if g.currentFunc != nil {
		// Check function parameters
		for _, param := range g.currentFunc.params {
			if len(param.name) > 0 && len(name) > 0 {
				similarNames = append(similarNames, param.name)
			}
		}
		// Check local variables
		for localName := range g.locals {
			similarNames = append(similarNames, localName)
		}
	}

	// Use improved error reporting helper
	g.reportUndefinedError(name, ident, similarNames, "variable")
	return "", fmt.Errorf("undefined variable: %s", name)
}


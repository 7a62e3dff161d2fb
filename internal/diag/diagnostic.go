package diag

// Stage identifies which compiler phase produced the diagnostic.
type Stage string

const (
	StageLexer     Stage = "lexer"
	StageParser    Stage = "parser"
	StageBorrow    Stage = "borrow"
	StageTypeCheck Stage = "typecheck"
	StageCodegen   Stage = "codegen"
	StageResolver  Stage = "resolver"
	StagePackage   Stage = "package"
	StageVisibility Stage = "visibility"
)

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityNote    Severity = "note"
)

// Code is a stable identifier for a diagnostic.
type Code string

const (
	CodeLexerUnterminatedString       Code = "LEXER_UNTERMINATED_STRING"
	CodeLexerUnterminatedBlockComment Code = "LEXER_UNTERMINATED_BLOCK_COMMENT"
	CodeLexerIllegalRune              Code = "LEXER_ILLEGAL_RUNE"

	CodeTypeMismatch               Code = "TYPE_MISMATCH"
	CodeTypeCannotAssign           Code = "TYPE_CANNOT_ASSIGN"
	CodeTypeUndefinedIdentifier    Code = "TYPE_UNDEFINED_IDENTIFIER"
	CodeTypeUnknownField           Code = "TYPE_UNKNOWN_FIELD"
	CodeTypeMissingField           Code = "TYPE_MISSING_FIELD"
	CodeTypeInvalidOperation       Code = "TYPE_INVALID_OPERATION"
	CodeTypeInvalidPattern         Code = "TYPE_INVALID_PATTERN"
	CodeTypeInvalidGenericArgs     Code = "TYPE_INVALID_GENERIC_ARGS"
	CodeTypeConstraintNotSatisfied Code = "TYPE_CONSTRAINT_NOT_SATISFIED"
	CodeTypeConstraintViolation    Code = "TYPE_CONSTRAINT_VIOLATION"
	CodeTypeNonExhaustiveMatch     Code = "TYPE_NON_EXHAUSTIVE_MATCH"
	CodeTypeMissingAssociatedType  Code = "TYPE_MISSING_ASSOCIATED_TYPE"
	CodeTypeUnknownAssociatedType  Code = "TYPE_UNKNOWN_ASSOCIATED_TYPE"
	CodeTypeUnsafeRequired         Code = "TYPE_UNSAFE_REQUIRED"
	CodeTypeBorrowConflict         Code = "TYPE_BORROW_CONFLICT"
	CodeTypeUnsafeCoercion         Code = "TYPE_UNSAFE_COERCION"
	CodeTypeForbiddenCoercion      Code = "TYPE_FORBIDDEN_COERCION"

	CodeBorrowUseAfterMove   Code = "BORROW_USE_AFTER_MOVE"
	CodeBorrowConflict       Code = "BORROW_CONFLICT"
	CodeBorrowLifetimeEscape Code = "BORROW_LIFETIME_ESCAPE"

	CodeGenControlFlowError     Code = "CODEGEN_CONTROL_FLOW_ERROR"
	CodeGenFieldNotFound        Code = "CODEGEN_FIELD_NOT_FOUND"
	CodeGenFormatStringError    Code = "CODEGEN_FORMAT_STRING_ERROR"
	CodeGenInvalidArrayLiteral  Code = "CODEGEN_INVALID_ARRAY_LITERAL"
	CodeGenInvalidEnumLiteral   Code = "CODEGEN_INVALID_ENUM_LITERAL"
	CodeGenInvalidIndex         Code = "CODEGEN_INVALID_INDEX"
	CodeGenInvalidOperation     Code = "CODEGEN_INVALID_OPERATION"
	CodeGenInvalidStructLiteral Code = "CODEGEN_INVALID_STRUCT_LITERAL"
	CodeGenTypeMappingError     Code = "CODEGEN_TYPE_MAPPING_ERROR"
	CodeGenUndefinedVariable    Code = "CODEGEN_UNDEFINED_VARIABLE"
	CodeGenUnsupportedExpr      Code = "CODEGEN_UNSUPPORTED_EXPR"
	CodeGenUnsupportedOperator  Code = "CODEGEN_UNSUPPORTED_OPERATOR"
	CodeGenUnsupportedStmt      Code = "CODEGEN_UNSUPPORTED_STMT"
	CodeGenVariantNotFound      Code = "CODEGEN_VARIANT_NOT_FOUND"

	CodeResolverFileNotFound  Code = "RESOLVER_FILE_NOT_FOUND"
	CodeResolverCyclicImport  Code = "RESOLVER_CYCLIC_IMPORT"
	CodeResolverAmbiguousPath Code = "RESOLVER_AMBIGUOUS_PATH"

	CodePackageManifestInvalid  Code = "PACKAGE_MANIFEST_INVALID"
	CodePackageLockMismatch     Code = "PACKAGE_LOCK_MISMATCH"
	CodePackageVersionConflict  Code = "PACKAGE_VERSION_CONFLICT"
	CodePackageFetchFailed      Code = "PACKAGE_FETCH_FAILED"
	CodePackageIntegrityFailure Code = "PACKAGE_INTEGRITY_FAILURE"

	CodeVisibilityMissingContract Code = "VISIBILITY_MISSING_CONTRACT"
)

// Span represents a location in source code.
type Span struct {
	Filename string
	Line     int
	Column   int
	Start    int
	End      int
}

// IsValid reports whether the span refers to a real source location.
func (s Span) IsValid() bool {
	return s.Line > 0
}

func (s Span) String() string {
	if s.Filename == "" {
		return "<unknown>"
	}
	return s.Filename + ":" + itoa(s.Line) + ":" + itoa(s.Column)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// LabeledSpan is a span annotated for display, either the primary
// culprit ("primary") or supporting context ("secondary").
type LabeledSpan struct {
	Span  Span
	Label string
	Style string // "primary" or "secondary"
}

// ProofStep is one link in a constraint-satisfaction explanation chain,
// e.g. "type parameter T must satisfy Display" -> "required by this bound".
type ProofStep struct {
	Message string
	Span    Span
}

// Diagnostic is a compiler diagnostic surfaced to end-users.
type Diagnostic struct {
	Stage      Stage
	Severity   Severity
	Code       Code
	Message    string
	Suggestion string
	Help       string
	Notes      []string
	Span       Span
	Related    []Span
	LabeledSpans []LabeledSpan
	ProofChain []ProofStep
}

// WithPrimarySpan attaches the primary (underlined with ^) span.
func (d Diagnostic) WithPrimarySpan(span Span, label string) Diagnostic {
	d.Span = span
	d.LabeledSpans = append(d.LabeledSpans, LabeledSpan{Span: span, Label: label, Style: "primary"})
	return d
}

// WithSecondarySpan attaches a supporting (underlined with ~) span.
func (d Diagnostic) WithSecondarySpan(span Span, label string) Diagnostic {
	d.LabeledSpans = append(d.LabeledSpans, LabeledSpan{Span: span, Label: label, Style: "secondary"})
	return d
}

// WithProofChain attaches a constraint-satisfaction explanation chain.
func (d Diagnostic) WithProofChain(steps []ProofStep) Diagnostic {
	d.ProofChain = steps
	return d
}

// WithNote appends a note line to the diagnostic.
func (d Diagnostic) WithNote(note string) Diagnostic {
	d.Notes = append(d.Notes, note)
	return d
}

package types

import (
	"github.com/vex-lang/vexc/internal/ast"
)

// resolveAssociatedType attempts to resolve a projected type T::Item to its concrete type
// by looking up the impl block for T and finding the type assignment for Item.
func (c *Checker) resolveAssociatedType(base Type, assocName string) Type {
	// If base is a generic instance, look up its impl
	if genInst, ok := base.(*GenericInstance); ok {
		// Get the base type name
		var baseName string
		if named, ok := genInst.Base.(*Named); ok {
			baseName = named.Name
		} else if strct, ok := genInst.Base.(*Struct); ok {
			baseName = strct.Name
		}

		if baseName != "" {
			// Look for impl blocks of traits for this type
			// This would require tracking impl blocks, which we do in Env
			// For now, return TypeVoid as placeholder
			_ = assocName
			return TypeVoid
		}
	}

	// For other types, we can't resolve yet
	return TypeVoid
}

// checkWhereClauseWithAssociatedTypes validates where clauses that contain
// projected types like T::Item: Display
func (c *Checker) checkWhereClauseWithAssociatedTypes(where *ast.WhereClause) {
	if where == nil {
		return
	}

	// WhereClause contains Predicates, not Constraints
	// For now, where clause checking is deferred since the AST structure
	// may need updates to properly support T::Item syntax in where clauses

	// This is a placeholder for future enhancement
	// When fully implemented, we would:
	// 1. Parse where clauses with projected types
	// 2. Track these constraints on type parameters
	// 3. Check them during generic instantiation
}

package semantic

import (
	"github.com/ramble-dl/ramble/ramble"
	"github.com/ramble-dl/ramble/ramble/ast"
)

// TypeEnv resolves type names to their structural attribute kind. The four
// primitive names are built in; everything else comes from .type declarations.
type TypeEnv struct {
	declared map[string]*ast.Type
	branches map[string]*branchInfo
}

type branchInfo struct {
	adt    *ast.Type
	branch *ast.Branch
	// Branch tags are assigned in declaration order within the ADT.
	tag int
}

var primitives = map[string]ramble.TypeAttribute{
	"number":   ramble.Signed,
	"signed":   ramble.Signed,
	"unsigned": ramble.Unsigned,
	"float":    ramble.Float,
	"symbol":   ramble.Symbol,
}

// newTypeEnv indexes the program's type declarations, reporting duplicates
// and duplicate ADT branch names.
func newTypeEnv(prog *ast.Program, report *Report) *TypeEnv {
	env := &TypeEnv{
		declared: map[string]*ast.Type{},
		branches: map[string]*branchInfo{},
	}
	for _, typ := range prog.Types {
		name := typ.Name.String()
		if _, isPrimitive := primitives[name]; isPrimitive {
			report.Errorf(typ.Loc(), "type %s redefines a primitive type", name)
			continue
		}
		if prev, dup := env.declared[name]; dup {
			report.Errorf(typ.Loc(), "type %s already declared at %s", name, prev.Loc())
			continue
		}
		env.declared[name] = typ
		if typ.Kind != ast.ADTTypeKind {
			continue
		}
		for tag, branch := range typ.Branches {
			bname := branch.Name.String()
			if prev, dup := env.branches[bname]; dup {
				report.Errorf(branch.Loc(), "branch %s already declared in type %s", bname, prev.adt.Name)
				continue
			}
			env.branches[bname] = &branchInfo{adt: typ, branch: branch, tag: tag}
		}
	}
	return env
}

// Lookup returns the declared type with the given name, or nil.
func (env *TypeEnv) Lookup(name ast.QualifiedName) *ast.Type {
	return env.declared[name.String()]
}

// Branch returns the ADT, branch declaration, and branch tag for a
// constructor name.
func (env *TypeEnv) Branch(name ast.QualifiedName) (*ast.Type, *ast.Branch, int, bool) {
	info, ok := env.branches[name.String()]
	if !ok {
		return nil, nil, 0, false
	}
	return info.adt, info.branch, info.tag, true
}

// Attribute resolves a type name to its structural attribute kind, following
// alias chains. The second result is false for unknown names or alias cycles.
func (env *TypeEnv) Attribute(name ast.QualifiedName) (ramble.TypeAttribute, bool) {
	seen := map[string]bool{}
	current := name
	for {
		key := current.String()
		if attr, ok := primitives[key]; ok {
			return attr, true
		}
		typ, ok := env.declared[key]
		if !ok || seen[key] {
			return ramble.Signed, false
		}
		seen[key] = true
		switch typ.Kind {
		case ast.RecordTypeKind:
			return ramble.Record, true
		case ast.ADTTypeKind:
			return ramble.ADT, true
		default:
			current = typ.Aliased
		}
	}
}

// RecordFields resolves a type name to its record fields, following aliases.
func (env *TypeEnv) RecordFields(name ast.QualifiedName) ([]*ast.Attribute, bool) {
	seen := map[string]bool{}
	current := name
	for {
		key := current.String()
		typ, ok := env.declared[key]
		if !ok || seen[key] {
			return nil, false
		}
		seen[key] = true
		switch typ.Kind {
		case ast.RecordTypeKind:
			return typ.Fields, true
		case ast.ADTTypeKind:
			return nil, false
		default:
			current = typ.Aliased
		}
	}
}

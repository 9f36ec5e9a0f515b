package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ramble-dl/ramble/ramble"
)

// Attribute is a named, typed column of a relation, record, or branch.
type Attribute struct {
	base
	Name     string
	TypeName QualifiedName
}

func (a *Attribute) Clone() Node {
	c := *a
	return &c
}

func (a *Attribute) Equal(other Node) bool {
	o, ok := other.(*Attribute)
	return ok && o.Name == a.Name && o.TypeName.Equal(a.TypeName)
}

func (a *Attribute) Children() []Node { return nil }
func (a *Attribute) Apply(Mapper)     {}
func (a *Attribute) String() string {
	return fmt.Sprintf("%s:%s", a.Name, a.TypeName)
}

// FunctionalConstraint declares a functional dependency on a relation:
// the key attributes determine the remaining attributes.
type FunctionalConstraint struct {
	base
	Keys []string
}

func (f *FunctionalConstraint) Clone() Node {
	return &FunctionalConstraint{base: f.base, Keys: append([]string(nil), f.Keys...)}
}

func (f *FunctionalConstraint) Equal(other Node) bool {
	o, ok := other.(*FunctionalConstraint)
	if !ok || len(o.Keys) != len(f.Keys) {
		return false
	}
	for i, k := range f.Keys {
		if o.Keys[i] != k {
			return false
		}
	}
	return true
}

func (f *FunctionalConstraint) Children() []Node { return nil }
func (f *FunctionalConstraint) Apply(Mapper)     {}
func (f *FunctionalConstraint) String() string {
	if len(f.Keys) == 1 {
		return f.Keys[0]
	}
	return "(" + strings.Join(f.Keys, ", ") + ")"
}

// Relation declares a relation with its attributes and representation.
type Relation struct {
	base
	Name           QualifiedName
	Attributes     []*Attribute
	Representation ramble.RelationRepresentation
	Dependencies   []*FunctionalConstraint
}

// Arity returns the number of declared attributes.
func (r *Relation) Arity() int { return len(r.Attributes) }

func (r *Relation) Clone() Node {
	return &Relation{
		base:           r.base,
		Name:           r.Name,
		Attributes:     cloneNodes(r.Attributes),
		Representation: r.Representation,
		Dependencies:   cloneNodes(r.Dependencies),
	}
}

func (r *Relation) Equal(other Node) bool {
	o, ok := other.(*Relation)
	return ok && o.Name.Equal(r.Name) && o.Representation == r.Representation &&
		equalNodes(r.Attributes, o.Attributes) && equalNodes(r.Dependencies, o.Dependencies)
}

func (r *Relation) Children() []Node {
	var children []Node
	for _, a := range r.Attributes {
		children = append(children, a)
	}
	for _, d := range r.Dependencies {
		children = append(children, d)
	}
	return children
}

func (r *Relation) Apply(m Mapper) {
	applyNodes(m, r.Attributes)
	applyNodes(m, r.Dependencies)
}

func (r *Relation) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, ".decl %s(%s)", r.Name, joinNodes(r.Attributes, ", "))
	if r.Representation != ramble.DefaultRepresentation {
		sb.WriteString(" ")
		sb.WriteString(r.Representation.String())
	}
	if len(r.Dependencies) > 0 {
		sb.WriteString(" choice-domain ")
		sb.WriteString(joinNodes(r.Dependencies, ", "))
	}
	return sb.String()
}

// Clause is a rule or, with an empty body, a fact.
type Clause struct {
	base
	Head *Atom
	Body []Literal
}

// IsFact reports whether the clause has no body.
func (c *Clause) IsFact() bool { return len(c.Body) == 0 }

func (c *Clause) Clone() Node {
	return &Clause{base: c.base, Head: c.Head.Clone().(*Atom), Body: cloneNodes(c.Body)}
}

func (c *Clause) Equal(other Node) bool {
	o, ok := other.(*Clause)
	return ok && c.Head.Equal(o.Head) && equalNodes(c.Body, o.Body)
}

func (c *Clause) Children() []Node {
	children := []Node{c.Head}
	for _, lit := range c.Body {
		children = append(children, lit)
	}
	return children
}

func (c *Clause) Apply(m Mapper) {
	c.Head = mapTo(m, c.Head)
	applyNodes(m, c.Body)
}

func (c *Clause) String() string {
	if c.IsFact() {
		return c.Head.String() + "."
	}
	return fmt.Sprintf("%s :- %s.", c.Head, joinNodes(c.Body, ", "))
}

// TypeKind classifies a type declaration.
type TypeKind uint8

const (
	AliasTypeKind TypeKind = iota
	RecordTypeKind
	ADTTypeKind
)

// Branch is one constructor of an ADT type.
type Branch struct {
	base
	Name   QualifiedName
	Fields []*Attribute
}

func (b *Branch) Clone() Node {
	return &Branch{base: b.base, Name: b.Name, Fields: cloneNodes(b.Fields)}
}

func (b *Branch) Equal(other Node) bool {
	o, ok := other.(*Branch)
	return ok && o.Name.Equal(b.Name) && equalNodes(b.Fields, o.Fields)
}

func (b *Branch) Children() []Node {
	var children []Node
	for _, f := range b.Fields {
		children = append(children, f)
	}
	return children
}

func (b *Branch) Apply(m Mapper) {
	applyNodes(m, b.Fields)
}

func (b *Branch) String() string {
	return fmt.Sprintf("%s {%s}", b.Name, joinNodes(b.Fields, ", "))
}

// Type declares a named type: an alias of a primitive or other type, a
// record, or an algebraic data type.
type Type struct {
	base
	Name     QualifiedName
	Kind     TypeKind
	Aliased  QualifiedName // alias kind only
	Fields   []*Attribute  // record kind only
	Branches []*Branch     // ADT kind only
}

func (t *Type) Clone() Node {
	return &Type{
		base:     t.base,
		Name:     t.Name,
		Kind:     t.Kind,
		Aliased:  t.Aliased,
		Fields:   cloneNodes(t.Fields),
		Branches: cloneNodes(t.Branches),
	}
}

func (t *Type) Equal(other Node) bool {
	o, ok := other.(*Type)
	return ok && o.Name.Equal(t.Name) && o.Kind == t.Kind && o.Aliased.Equal(t.Aliased) &&
		equalNodes(t.Fields, o.Fields) && equalNodes(t.Branches, o.Branches)
}

func (t *Type) Children() []Node {
	var children []Node
	for _, f := range t.Fields {
		children = append(children, f)
	}
	for _, b := range t.Branches {
		children = append(children, b)
	}
	return children
}

func (t *Type) Apply(m Mapper) {
	applyNodes(m, t.Fields)
	applyNodes(m, t.Branches)
}

func (t *Type) String() string {
	switch t.Kind {
	case RecordTypeKind:
		return fmt.Sprintf(".type %s = [%s]", t.Name, joinNodes(t.Fields, ", "))
	case ADTTypeKind:
		return fmt.Sprintf(".type %s = %s", t.Name, joinNodes(t.Branches, " | "))
	default:
		return fmt.Sprintf(".type %s = %s", t.Name, t.Aliased)
	}
}

// FunctorDeclaration declares a user-defined functor with its signature.
type FunctorDeclaration struct {
	base
	Name     string
	Params   []*Attribute
	Return   QualifiedName
	Stateful bool
}

func (f *FunctorDeclaration) Clone() Node {
	return &FunctorDeclaration{
		base:     f.base,
		Name:     f.Name,
		Params:   cloneNodes(f.Params),
		Return:   f.Return,
		Stateful: f.Stateful,
	}
}

func (f *FunctorDeclaration) Equal(other Node) bool {
	o, ok := other.(*FunctorDeclaration)
	return ok && o.Name == f.Name && o.Return.Equal(f.Return) && o.Stateful == f.Stateful &&
		equalNodes(f.Params, o.Params)
}

func (f *FunctorDeclaration) Children() []Node {
	var children []Node
	for _, p := range f.Params {
		children = append(children, p)
	}
	return children
}

func (f *FunctorDeclaration) Apply(m Mapper) {
	applyNodes(m, f.Params)
}

func (f *FunctorDeclaration) String() string {
	s := fmt.Sprintf(".functor %s(%s):%s", f.Name, joinNodes(f.Params, ", "), f.Return)
	if f.Stateful {
		s += " stateful"
	}
	return s
}

// DirectiveKind classifies an I/O directive.
type DirectiveKind uint8

const (
	InputDirective DirectiveKind = iota
	OutputDirective
	PrintSizeDirective
	LimitSizeDirective
)

func (k DirectiveKind) String() string {
	switch k {
	case InputDirective:
		return ".input"
	case OutputDirective:
		return ".output"
	case PrintSizeDirective:
		return ".printsize"
	case LimitSizeDirective:
		return ".limitsize"
	}
	return fmt.Sprintf("DirectiveKind(%d)", uint8(k))
}

// Directive attaches I/O or size-limit behavior to a relation.
type Directive struct {
	base
	Kind   DirectiveKind
	Name   QualifiedName
	Params map[string]string
}

func (d *Directive) Clone() Node {
	c := &Directive{base: d.base, Kind: d.Kind, Name: d.Name}
	if d.Params != nil {
		c.Params = make(map[string]string, len(d.Params))
		for k, v := range d.Params {
			c.Params[k] = v
		}
	}
	return c
}

func (d *Directive) Equal(other Node) bool {
	o, ok := other.(*Directive)
	if !ok || o.Kind != d.Kind || !o.Name.Equal(d.Name) || len(o.Params) != len(d.Params) {
		return false
	}
	for k, v := range d.Params {
		if ov, found := o.Params[k]; !found || ov != v {
			return false
		}
	}
	return true
}

func (d *Directive) Children() []Node { return nil }
func (d *Directive) Apply(Mapper)     {}

func (d *Directive) String() string {
	if len(d.Params) == 0 {
		return fmt.Sprintf("%s %s", d.Kind, d.Name)
	}
	keys := make([]string, 0, len(d.Params))
	for k := range d.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%q", k, d.Params[k])
	}
	return fmt.Sprintf("%s %s(%s)", d.Kind, d.Name, strings.Join(parts, ", "))
}

// Pragma carries a compiler option embedded in the source.
type Pragma struct {
	base
	Key   string
	Value string
}

func (p *Pragma) Clone() Node {
	c := *p
	return &c
}

func (p *Pragma) Equal(other Node) bool {
	o, ok := other.(*Pragma)
	return ok && o.Key == p.Key && o.Value == p.Value
}

func (p *Pragma) Children() []Node { return nil }
func (p *Pragma) Apply(Mapper)     {}

func (p *Pragma) String() string {
	if p.Value == "" {
		return fmt.Sprintf(".pragma %q", p.Key)
	}
	return fmt.Sprintf(".pragma %q %q", p.Key, p.Value)
}

// Component is a named group of declarations. Components are parsed and
// compared structurally; instantiation is not performed by this compiler.
type Component struct {
	base
	Name string
	Body []Node
}

func (c *Component) Clone() Node {
	return &Component{base: c.base, Name: c.Name, Body: cloneNodes(c.Body)}
}

func (c *Component) Equal(other Node) bool {
	o, ok := other.(*Component)
	return ok && o.Name == c.Name && equalNodes(c.Body, o.Body)
}

func (c *Component) Children() []Node {
	return append([]Node(nil), c.Body...)
}

func (c *Component) Apply(m Mapper) {
	applyNodes(m, c.Body)
}

func (c *Component) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, ".comp %s {\n", c.Name)
	for _, n := range c.Body {
		fmt.Fprintf(&sb, "    %s\n", n)
	}
	sb.WriteString("}")
	return sb.String()
}

// ComponentInit instantiates a component under a new name.
type ComponentInit struct {
	base
	Name      string
	Component string
}

func (c *ComponentInit) Clone() Node {
	cp := *c
	return &cp
}

func (c *ComponentInit) Equal(other Node) bool {
	o, ok := other.(*ComponentInit)
	return ok && o.Name == c.Name && o.Component == c.Component
}

func (c *ComponentInit) Children() []Node { return nil }
func (c *ComponentInit) Apply(Mapper)     {}

func (c *ComponentInit) String() string {
	return fmt.Sprintf(".init %s = %s", c.Name, c.Component)
}

// Program is the root of a translation unit.
type Program struct {
	base
	Types          []*Type
	Functors       []*FunctorDeclaration
	Relations      []*Relation
	Clauses        []*Clause
	Directives     []*Directive
	Pragmas        []*Pragma
	Components     []*Component
	Instantiations []*ComponentInit
}

func (p *Program) Clone() Node {
	return &Program{
		base:           p.base,
		Types:          cloneNodes(p.Types),
		Functors:       cloneNodes(p.Functors),
		Relations:      cloneNodes(p.Relations),
		Clauses:        cloneNodes(p.Clauses),
		Directives:     cloneNodes(p.Directives),
		Pragmas:        cloneNodes(p.Pragmas),
		Components:     cloneNodes(p.Components),
		Instantiations: cloneNodes(p.Instantiations),
	}
}

func (p *Program) Equal(other Node) bool {
	o, ok := other.(*Program)
	return ok &&
		equalNodes(p.Types, o.Types) &&
		equalNodes(p.Functors, o.Functors) &&
		equalNodes(p.Relations, o.Relations) &&
		equalNodes(p.Clauses, o.Clauses) &&
		equalNodes(p.Directives, o.Directives) &&
		equalNodes(p.Pragmas, o.Pragmas) &&
		equalNodes(p.Components, o.Components) &&
		equalNodes(p.Instantiations, o.Instantiations)
}

func (p *Program) Children() []Node {
	var children []Node
	for _, n := range p.Types {
		children = append(children, n)
	}
	for _, n := range p.Functors {
		children = append(children, n)
	}
	for _, n := range p.Relations {
		children = append(children, n)
	}
	for _, n := range p.Clauses {
		children = append(children, n)
	}
	for _, n := range p.Directives {
		children = append(children, n)
	}
	for _, n := range p.Pragmas {
		children = append(children, n)
	}
	for _, n := range p.Components {
		children = append(children, n)
	}
	for _, n := range p.Instantiations {
		children = append(children, n)
	}
	return children
}

func (p *Program) Apply(m Mapper) {
	applyNodes(m, p.Types)
	applyNodes(m, p.Functors)
	applyNodes(m, p.Relations)
	applyNodes(m, p.Clauses)
	applyNodes(m, p.Directives)
	applyNodes(m, p.Pragmas)
	applyNodes(m, p.Components)
	applyNodes(m, p.Instantiations)
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, n := range p.Children() {
		sb.WriteString(n.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Relation returns the declared relation with the given name, or nil.
func (p *Program) Relation(name QualifiedName) *Relation {
	for _, r := range p.Relations {
		if r.Name.Equal(name) {
			return r
		}
	}
	return nil
}

// ClausesFor returns the clauses whose head refers to the given relation.
func (p *Program) ClausesFor(name QualifiedName) []*Clause {
	var out []*Clause
	for _, c := range p.Clauses {
		if c.Head.Name.Equal(name) {
			out = append(out, c)
		}
	}
	return out
}

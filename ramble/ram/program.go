package ram

import (
	"sort"
	"strings"
)

// Program is a complete RAM translation result: the relation environment
// plus the main statement.
type Program struct {
	Relations map[string]*Relation
	Main      Statement
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{Relations: map[string]*Relation{}}
}

// Relation returns the declared relation, or nil.
func (p *Program) Relation(name string) *Relation {
	return p.Relations[name]
}

// AddRelation registers a relation; re-registering the same name panics,
// that is a translator bug.
func (p *Program) AddRelation(rel *Relation) {
	if _, dup := p.Relations[rel.Name]; dup {
		panic("ram: duplicate relation " + rel.Name)
	}
	p.Relations[rel.Name] = rel
}

// RelationNames returns every relation name in sorted order.
func (p *Program) RelationNames() []string {
	names := make([]string, 0, len(p.Relations))
	for name := range p.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Program) String() string {
	var sb strings.Builder
	sb.WriteString("PROGRAM\n")
	for _, name := range p.RelationNames() {
		sb.WriteString(indentStep)
		sb.WriteString("DECL ")
		sb.WriteString(p.Relations[name].String())
		sb.WriteString("\n")
	}
	if p.Main != nil {
		p.Main.print(&sb, 1)
	}
	sb.WriteString("END PROGRAM")
	return sb.String()
}

// Analysis is a cached derived view over a translation unit. Analyses are
// computed lazily and dropped whenever a transform reports a change.
type Analysis interface {
	Name() string
}

// TranslationUnit couples a RAM program with its analysis cache. Transforms
// mutate the program through the unit so invalidation is never missed.
type TranslationUnit struct {
	Program *Program

	generation int
	analyses   map[string]Analysis
}

// NewTranslationUnit wraps a program.
func NewTranslationUnit(prog *Program) *TranslationUnit {
	return &TranslationUnit{
		Program:  prog,
		analyses: map[string]Analysis{},
	}
}

// Generation counts invalidations; analyses embed it to detect staleness.
func (u *TranslationUnit) Generation() int { return u.generation }

// Analysis returns the cached analysis under the given key, building it on
// first request after any invalidation.
func (u *TranslationUnit) Analysis(key string, build func() Analysis) Analysis {
	if a, ok := u.analyses[key]; ok {
		return a
	}
	a := build()
	u.analyses[key] = a
	return a
}

// Invalidate drops every cached analysis. Transforms call this whenever
// they changed the program.
func (u *TranslationUnit) Invalidate() {
	u.generation++
	u.analyses = map[string]Analysis{}
}

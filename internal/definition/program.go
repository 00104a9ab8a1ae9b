package definition

import "slices"

// Program builds a statement list in Go.
//
//	p := definition.NewProgram().
//		Set("path", "/srv/app").
//		Every("1.day", map[string]any{"at": "4:30am"}, func(p *definition.Program) {
//			p.Job("rake", "reports:send", nil)
//		})
type Program struct {
	stmts []Statement
}

// NewProgram returns an empty program.
func NewProgram() *Program { return &Program{} }

// Set appends a set statement.
func (p *Program) Set(key string, value any) *Program {
	p.stmts = append(p.stmts, Statement{Set: []Pair{{Key: key, Value: value}}})
	return p
}

// Env appends an env statement.
func (p *Program) Env(key, value string) *Program {
	p.stmts = append(p.stmts, Statement{Env: []Pair{{Key: key, Value: value}}})
	return p
}

// JobType appends a job_type statement.
func (p *Program) JobType(name, template string) *Program {
	p.stmts = append(p.stmts, Statement{JobType: &JobTypeDef{Name: name, Template: template}})
	return p
}

// Every appends an every block whose body is built by fn.
func (p *Program) Every(scope string, opts map[string]any, fn func(*Program)) *Program {
	body := NewProgram()
	if fn != nil {
		fn(body)
	}
	p.stmts = append(p.stmts, Statement{Every: &EveryBlock{Scope: scope, Options: opts, Do: body.stmts}})
	return p
}

// Job appends a job statement.
func (p *Program) Job(typeName, task string, opts map[string]any) *Program {
	p.stmts = append(p.stmts, Statement{Job: &JobCall{Type: typeName, Task: task, Options: opts}})
	return p
}

// Statements returns a copy of the built statements.
func (p *Program) Statements() []Statement { return slices.Clone(p.stmts) }

// File wraps the statements in a File.
func (p *Program) File() *File { return &File{Schedule: p.Statements()} }

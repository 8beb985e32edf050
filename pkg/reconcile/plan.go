// Package reconcile builds the statements that bring a destination table in
// line with a source table using only primary keys and a change timestamp.
//
// Every builder is a pure function of the two table descriptors. None of
// them executes anything. Executing the statements is only correct in the
// order of Plan.Steps, against a single source snapshot.
package reconcile

import (
	"github.com/block/keysync/pkg/query"
	"github.com/block/keysync/pkg/table"
)

// Step names, in execution order.
const (
	StepInsert      = "insert"
	StepRevive      = "revive"
	StepUpdate      = "update"
	StepMarkDeleted = "mark_deleted"
)

// Plan holds the statements of one sync cycle for one table pair.
type Plan struct {
	Source       *table.TableInfo
	Destination  *table.TableInfo
	Options      Options
	Insert       *query.Insert
	InsertSelect *query.Select
	Revive       *query.Update // nil unless WithRevive was given
	Update       *query.Update
	MarkDeleted  *query.Update
}

// Step is one statement of a plan.
type Step struct {
	Name      string
	Statement query.Statement
}

// BuildPlan builds every statement for the pair. It fails with a
// table.ErrSchemaMismatch error before building anything if the
// descriptors are incompatible.
func BuildPlan(src, dst *table.TableInfo, opts ...Option) (*Plan, error) {
	o := newOptions(opts)
	if err := table.CheckCompatible(src, dst, o.requirements()); err != nil {
		return nil, err
	}
	p := &Plan{Source: src, Destination: dst, Options: o}
	var err error
	if p.Insert, p.InsertSelect, err = BuildInsertSelect(src, dst, opts...); err != nil {
		return nil, err
	}
	if o.Revive {
		if p.Revive, err = BuildRevive(src, dst, opts...); err != nil {
			return nil, err
		}
	}
	if p.Update, err = BuildUpdate(src, dst, opts...); err != nil {
		return nil, err
	}
	if p.MarkDeleted, err = BuildMarkDeleted(src, dst, opts...); err != nil {
		return nil, err
	}
	return p, nil
}

// Steps returns the statements in the order they must run:
// insert, revive, update, mark deleted.
func (p *Plan) Steps() []Step {
	steps := []Step{{Name: StepInsert, Statement: p.Insert}}
	if p.Revive != nil {
		steps = append(steps, Step{Name: StepRevive, Statement: p.Revive})
	}
	return append(steps,
		Step{Name: StepUpdate, Statement: p.Update},
		Step{Name: StepMarkDeleted, Statement: p.MarkDeleted},
	)
}

// Render compiles every step for dialect d, keyed by step name.
func (p *Plan) Render(d query.Dialect) (map[string]query.Compiled, error) {
	out := make(map[string]query.Compiled)
	for _, s := range p.Steps() {
		c, err := query.Render(d, s.Statement)
		if err != nil {
			return nil, err
		}
		out[s.Name] = c
	}
	return out, nil
}

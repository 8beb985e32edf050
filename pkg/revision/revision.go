// Package revision applies versioned schema changes to the destination.
//
// Revisions form a single linear chain: each names its parent and exactly
// one has none. The applied head is stored in a one-row table so that
// upgrades and downgrades resume from wherever the database is.
package revision

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrDuplicateRevision = errors.New("duplicate revision")
	ErrMissingParent     = errors.New("parent revision not found")
	ErrBranch            = errors.New("revisions branch")
	ErrRoot              = errors.New("chain must have exactly one root revision")
	ErrUnreachable       = errors.New("revision is not reachable from the root")
	ErrUnknownRevision   = errors.New("unknown revision")
	ErrNoTarget          = errors.New("downgrade target is required")
)

// Revision is one step of the chain.
type Revision struct {
	ID          string
	Parent      string // empty for the root
	Description string
	Upgrade     []Op
	Downgrade   []Op
}

// Chain is a validated, ordered list of revisions.
type Chain struct {
	revisions []*Revision // root first
	index     map[string]int
}

// NewChain orders revs by their parent links. It fails if the revisions
// do not form exactly one unbranched line.
func NewChain(revs []*Revision) (*Chain, error) {
	byID := make(map[string]*Revision, len(revs))
	children := make(map[string]*Revision, len(revs))
	var roots []*Revision
	for _, rev := range revs {
		if rev.ID == "" {
			return nil, errors.New("revision id is required")
		}
		if _, ok := byID[rev.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRevision, rev.ID)
		}
		byID[rev.ID] = rev
	}
	for _, rev := range revs {
		if rev.Parent == "" {
			roots = append(roots, rev)
			continue
		}
		if _, ok := byID[rev.Parent]; !ok {
			return nil, fmt.Errorf("%w: %s revises %s", ErrMissingParent, rev.ID, rev.Parent)
		}
		if other, ok := children[rev.Parent]; ok {
			return nil, fmt.Errorf("%w: %s and %s both revise %s", ErrBranch, other.ID, rev.ID, rev.Parent)
		}
		children[rev.Parent] = rev
	}
	if len(roots) != 1 {
		ids := make([]string, len(roots))
		for i, r := range roots {
			ids[i] = r.ID
		}
		return nil, fmt.Errorf("%w, found %d: %s", ErrRoot, len(roots), strings.Join(ids, ", "))
	}

	c := &Chain{index: make(map[string]int, len(revs))}
	for rev := roots[0]; rev != nil; rev = children[rev.ID] {
		c.index[rev.ID] = len(c.revisions)
		c.revisions = append(c.revisions, rev)
	}
	if len(c.revisions) != len(revs) {
		for _, rev := range revs {
			if _, ok := c.index[rev.ID]; !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnreachable, rev.ID)
			}
		}
	}
	return c, nil
}

// Revisions returns the revisions root first.
func (c *Chain) Revisions() []*Revision {
	return slices.Clone(c.revisions)
}

// Head is the id of the newest revision.
func (c *Chain) Head() string {
	return c.revisions[len(c.revisions)-1].ID
}

// position returns the number of revisions applied when id is the head:
// 0 for an empty id, len for the head.
func (c *Chain) position(id string) (int, error) {
	if id == "" {
		return 0, nil
	}
	i, ok := c.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRevision, id)
	}
	return i + 1, nil
}

// file is the YAML form of a revision. Each op is a single-key map naming
// its kind, for example:
//
//	upgrade:
//	  - add_unique_constraint:
//	      name: summary_uniq
//	      table: opportunity_summary
//	      columns: [is_forecast, opportunity_id]
//	      nulls_not_distinct: true
type file struct {
	ID          string   `yaml:"id"`
	Parent      string   `yaml:"parent"`
	Description string   `yaml:"description"`
	Upgrade     []opSpec `yaml:"upgrade"`
	Downgrade   []opSpec `yaml:"downgrade"`
}

type opSpec struct {
	SQL                 *SQL                 `yaml:"sql"`
	AddColumn           *AddColumn           `yaml:"add_column"`
	AddUniqueConstraint *AddUniqueConstraint `yaml:"add_unique_constraint"`
	DropConstraint      *DropConstraint      `yaml:"drop_constraint"`
}

func (s opSpec) op() (Op, error) {
	var ops []Op
	if s.SQL != nil {
		ops = append(ops, s.SQL)
	}
	if s.AddColumn != nil {
		ops = append(ops, s.AddColumn)
	}
	if s.AddUniqueConstraint != nil {
		ops = append(ops, s.AddUniqueConstraint)
	}
	if s.DropConstraint != nil {
		ops = append(ops, s.DropConstraint)
	}
	if len(ops) != 1 {
		return nil, fmt.Errorf("each op must have exactly one kind, found %d", len(ops))
	}
	return ops[0], nil
}

func convertOps(specs []opSpec, what string) ([]Op, error) {
	ops := make([]Op, len(specs))
	for i, s := range specs {
		op, err := s.op()
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", what, i, err)
		}
		ops[i] = op
	}
	return ops, nil
}

// Parse reads one revision from YAML.
func Parse(data []byte) (*Revision, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse revision: %w", err)
	}
	if f.ID == "" {
		return nil, errors.New("revision id is required")
	}
	rev := &Revision{ID: f.ID, Parent: f.Parent, Description: f.Description}
	var err error
	if rev.Upgrade, err = convertOps(f.Upgrade, "upgrade"); err != nil {
		return nil, fmt.Errorf("revision %s: %w", f.ID, err)
	}
	if rev.Downgrade, err = convertOps(f.Downgrade, "downgrade"); err != nil {
		return nil, fmt.Errorf("revision %s: %w", f.ID, err)
	}
	return rev, nil
}

// LoadDir reads every .yaml and .yml file in dir as one revision and
// builds the chain.
func LoadDir(dir string) (*Chain, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read revision directory: %w", err)
	}
	var revs []*Revision
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		rev, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		revs = append(revs, rev)
	}
	if len(revs) == 0 {
		return nil, fmt.Errorf("no revisions found in %s", dir)
	}
	return NewChain(revs)
}

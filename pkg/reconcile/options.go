package reconcile

import "github.com/block/keysync/pkg/table"

const (
	DefaultTimestampColumn = "last_upd_date"
	DefaultDeletedColumn   = "is_deleted"
)

// Options are the bookkeeping column names shared by the builders.
type Options struct {
	TimestampColumn string
	DeletedColumn   string
	Revive          bool
}

type Option func(*Options)

// WithTimestampColumn sets the change timestamp column present on both tables.
func WithTimestampColumn(name string) Option {
	return func(o *Options) {
		o.TimestampColumn = name
	}
}

// WithDeletedColumn sets the logical deletion flag present on the destination.
func WithDeletedColumn(name string) Option {
	return func(o *Options) {
		o.DeletedColumn = name
	}
}

// WithRevive makes BuildPlan include the revive step.
func WithRevive() Option {
	return func(o *Options) {
		o.Revive = true
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		TimestampColumn: DefaultTimestampColumn,
		DeletedColumn:   DefaultDeletedColumn,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o Options) requirements() table.Requirements {
	return table.Requirements{
		TimestampColumn: o.TimestampColumn,
		DeletedColumn:   o.DeletedColumn,
	}
}

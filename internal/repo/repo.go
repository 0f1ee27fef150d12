package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"eventform/internal/model"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// Repository stores applications in submission order. Every Save and
// UpdateStatus is atomic; returned values are copies the caller may keep.
type Repository interface {
	Save(ctx context.Context, draft model.Application) (model.Application, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Application, error)
	GetByID(ctx context.Context, id string) (model.Application, error)
	ListAll(ctx context.Context) ([]model.Application, error)
}

type Option func(*options)

type options struct {
	now   func() time.Time
	newID func() string
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

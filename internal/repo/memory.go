package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"eventform/internal/model"
)

type memoryRepository struct {
	mu    sync.RWMutex
	items []model.Application
	index map[string]int
	opts  options
	log   *zerolog.Logger
}

func NewMemoryRepository(log *zerolog.Logger, opts ...Option) Repository {
	return &memoryRepository{
		index: make(map[string]int),
		opts:  buildOptions(opts),
		log:   log,
	}
}

func (r *memoryRepository) Save(ctx context.Context, draft model.Application) (model.Application, error) {
	if err := ctx.Err(); err != nil {
		return model.Application{}, err
	}

	app := draft
	app.Status = model.StatusPending
	app.UpdatedAt = time.Time{}

	r.mu.Lock()
	defer r.mu.Unlock()

	app.ID = r.opts.newID()
	if _, exists := r.index[app.ID]; exists {
		return model.Application{}, fmt.Errorf("duplicate application id %s", app.ID)
	}
	app.CreatedAt = r.opts.now()

	r.index[app.ID] = len(r.items)
	r.items = append(r.items, app)
	return app, nil
}

func (r *memoryRepository) UpdateStatus(ctx context.Context, id string, status model.Status) (model.Application, error) {
	if err := ctx.Err(); err != nil {
		return model.Application{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[id]
	if !ok {
		return model.Application{}, ErrApplicationNotFound
	}

	app := r.items[pos]
	if !model.CanTransition(app.Status, status) {
		return app, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, app.Status, status)
	}
	if app.Status == status {
		return app, nil
	}

	app.Status = status
	app.UpdatedAt = r.opts.now()
	r.items[pos] = app

	if r.log != nil {
		r.log.Debug().Str("application_id", id).Str("status", string(status)).Msg("application status updated")
	}
	return app, nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (model.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.index[id]
	if !ok {
		return model.Application{}, ErrApplicationNotFound
	}
	return r.items[pos], nil
}

func (r *memoryRepository) ListAll(ctx context.Context) ([]model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Application, len(r.items))
	copy(out, r.items)
	return out, nil
}

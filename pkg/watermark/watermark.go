package watermark

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Store reads the newest updated_at of a kind's table. ok is false when the
// table is empty.
type Store interface {
	MaxUpdatedAt(ctx context.Context, kind models.EntityKind) (time.Time, bool, error)
}

type Config struct {
	// FullLoadEpoch is the watermark of a full load.
	FullLoadEpoch time.Time
	// FromDate replaces the epoch for time entries.
	FromDate time.Time
}

type Resolver struct {
	store  Store
	cfg    Config
	logger ectologger.Logger
}

func NewResolver(store Store, cfg Config, logger ectologger.Logger) *Resolver {
	return &Resolver{store: store, cfg: cfg, logger: logger}
}

// Since returns the updated_since cutoff for kind. A differential run on an
// empty table falls back to the full-load value.
func (r *Resolver) Since(ctx context.Context, kind models.EntityKind, fullLoad bool) (time.Time, error) {
	if fullLoad {
		return r.fullLoad(kind), nil
	}

	latest, ok, err := r.store.MaxUpdatedAt(ctx, kind)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		r.logger.WithContext(ctx).WithField("kind", kind).Info("Table is empty, using full load watermark")
		return r.fullLoad(kind), nil
	}
	return latest.UTC(), nil
}

func (r *Resolver) fullLoad(kind models.EntityKind) time.Time {
	if kind == models.KindTimeEntries && !r.cfg.FromDate.IsZero() {
		return r.cfg.FromDate.UTC()
	}
	return r.cfg.FullLoadEpoch.UTC()
}

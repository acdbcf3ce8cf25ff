package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/forecast"
	"github.com/Ramsey-B/fern/pkg/harvest"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/reconcile"
	"github.com/Ramsey-B/fern/pkg/result"
	"github.com/Ramsey-B/fern/pkg/source"
	"github.com/Ramsey-B/fern/pkg/transform"
)

type keyed interface {
	Key() int64
}

type forecastRecord interface {
	keyed
	SharedKey() *int64
	Updated() time.Time
}

// dimension describes how one dual-identity kind moves through a stage.
type dimension[H keyed, F forecastRecord, W any] struct {
	kind          models.EntityKind
	fetchHarvest  func(ctx context.Context, since time.Time) (source.Batch[H], error)
	fetchForecast func(ctx context.Context) (source.Batch[F], error)
	store         DimensionStore[W]
	fromHarvest   func(h H, match *F) (W, error)
	fromForecast  func(f F) (W, error)
}

func (p *Pipeline) syncPeople(ctx context.Context, r *run, since time.Time) error {
	return syncDimension(ctx, p, r, since, dimension[harvest.User, forecast.Person, models.Person]{
		kind:          models.KindPeople,
		fetchHarvest:  p.harvest.Users,
		fetchForecast: p.forecast.People,
		store:         p.stores.People,
		fromHarvest: func(u harvest.User, match *forecast.Person) (models.Person, error) {
			return transform.Person(u, match, p.cfg.Roles), nil
		},
		fromForecast: func(f forecast.Person) (models.Person, error) {
			return transform.OrphanPerson(f, p.cfg.Roles), nil
		},
	})
}

func (p *Pipeline) syncClients(ctx context.Context, r *run, since time.Time) error {
	return syncDimension(ctx, p, r, since, dimension[harvest.Client, forecast.Client, models.Client]{
		kind:          models.KindClients,
		fetchHarvest:  p.harvest.Clients,
		fetchForecast: p.forecast.Clients,
		store:         p.stores.Clients,
		fromHarvest: func(c harvest.Client, match *forecast.Client) (models.Client, error) {
			return transform.Client(c, match), nil
		},
		fromForecast: func(f forecast.Client) (models.Client, error) {
			return transform.OrphanClient(f), nil
		},
	})
}

func (p *Pipeline) syncProjects(ctx context.Context, r *run, since time.Time) error {
	return syncDimension(ctx, p, r, since, dimension[harvest.Project, forecast.Project, models.Project]{
		kind:          models.KindProjects,
		fetchHarvest:  p.harvest.Projects,
		fetchForecast: p.forecast.Projects,
		store:         p.stores.Projects,
		fromHarvest: func(h harvest.Project, match *forecast.Project) (models.Project, error) {
			return transform.Project(h, match, r.cache, p.cfg.FallbackClient)
		},
		fromForecast: func(f forecast.Project) (models.Project, error) {
			client, err := reconcile.ResolveOrphanClient(f.ClientID, r.cache, p.cfg.FallbackClient)
			if err != nil {
				return models.Project{}, err
			}
			return transform.OrphanProject(f, client), nil
		},
	})
}

// syncDimension joins the Harvest records updated since the watermark with
// the Forecast feed, upserts the matches, then links or inserts whatever
// Forecast records were left over.
func syncDimension[H keyed, F forecastRecord, W any](ctx context.Context, p *Pipeline, r *run, since time.Time, d dimension[H, F, W]) error {
	log := p.logger.WithContext(ctx).WithField("kind", d.kind)

	harvestBatch, err := d.fetchHarvest(ctx, since)
	if err != nil {
		return err
	}
	forecastBatch, err := d.fetchForecast(ctx)
	if err != nil {
		return err
	}
	r.feeds[d.kind] = sourceIDs(forecastBatch)

	p.rejections(ctx, r, d.kind, result.SourceHarvest, harvestBatch.Rejections)
	p.rejections(ctx, r, d.kind, result.SourceForecast, forecastBatch.Rejections)

	updated := source.UpdatedSince(forecastBatch.Records, since, updatedAt[F])
	joined := reconcile.Join(harvestBatch.Records, updated, recordKey[H], sharedKey[F], reconcile.NewerFirst(updatedAt[F], recordKey[F]))

	for _, conflict := range joined.Conflicts {
		log.WithFields(map[string]any{
			"shared_key": conflict.Key,
			"loser":      conflict.Record.Key(),
			"winner":     conflict.Winner.Key(),
		}).Warn("Duplicate shared key in forecast feed")
		p.fail(ctx, r, result.FailedID(d.kind, result.SourceForecast, conflict.Record.Key(),
			fmt.Errorf("duplicate shared key %d: forecast record %d was kept", conflict.Key, conflict.Winner.Key())))
	}

	for _, match := range joined.Matched {
		key := match.Primary.Key()
		row, err := d.fromHarvest(match.Primary, match.Secondary)
		if err != nil {
			p.fail(ctx, r, result.FailedID(d.kind, result.SourceHarvest, key, err))
			continue
		}
		id, status, err := d.store.UpsertHarvest(ctx, row)
		if err := p.persisted(ctx, r, d.kind, result.SourceHarvest, key, status, id, row, err); err != nil {
			return err
		}
	}

	if err := r.cache.Refresh(ctx, d.kind); err != nil {
		return err
	}

	detection := reconcile.Detect(joined.Residual, sharedKey[F], r.cache.Resolver(d.kind))
	for _, link := range detection.Links {
		key := link.Record.Key()
		status, err := d.store.Link(ctx, link.WarehouseID, key)
		if err := p.persisted(ctx, r, d.kind, result.SourceForecast, key, status, link.WarehouseID, link.Record, err); err != nil {
			return err
		}
	}
	for _, orphan := range detection.Orphans {
		key := orphan.Key()
		row, err := d.fromForecast(orphan)
		if err != nil {
			p.fail(ctx, r, result.FailedID(d.kind, result.SourceForecast, key, err))
			continue
		}
		id, status, err := d.store.UpsertForecast(ctx, row)
		if err := p.persisted(ctx, r, d.kind, result.SourceForecast, key, status, id, row, err); err != nil {
			return err
		}
	}

	log.WithFields(map[string]any{
		"harvest":  len(harvestBatch.Records),
		"forecast": len(updated),
		"matched":  len(joined.Matched),
		"linked":   len(detection.Links),
		"orphans":  len(detection.Orphans),
	}).Infof("Reconciled %s", d.kind)

	return r.cache.Refresh(ctx, d.kind)
}

// sourceIDs lists every id in the batch, rejected records included, so a
// record that failed to decode is never mistaken for a deleted one.
func sourceIDs[T keyed](batch source.Batch[T]) []int64 {
	ids := ectolinq.Map(batch.Records, recordKey[T])
	return append(ids, rejectionIDs(batch.Rejections)...)
}

func rejectionIDs(rejections []source.Rejection) []int64 {
	ids := make([]int64, 0, len(rejections))
	for _, rejection := range rejections {
		if id, err := strconv.ParseInt(rejection.Key, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func recordKey[T keyed](record T) int64         { return record.Key() }
func sharedKey[F forecastRecord](f F) *int64    { return f.SharedKey() }
func updatedAt[F forecastRecord](f F) time.Time { return f.Updated() }

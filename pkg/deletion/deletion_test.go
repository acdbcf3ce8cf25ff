package deletion

import (
	"context"
	"errors"
	"testing"

	"github.com/Ramsey-B/fern/pkg/logging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestStaleIDs(t *testing.T) {
	tests := []struct {
		name      string
		warehouse []int64
		source    []int64
		want      []int64
	}{
		{"one gone", []int64{1, 2, 3}, []int64{1, 3}, []int64{2}},
		{"nothing gone", []int64{1, 2}, []int64{2, 1, 7}, []int64{}},
		{"empty source", []int64{3, 1}, nil, []int64{1, 3}},
		{"empty warehouse", nil, []int64{1}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StaleIDs(tt.warehouse, tt.source))
		})
	}
}

func TestStaleIdentities(t *testing.T) {
	warehouse := []Identity{
		{ID: 1, HarvestID: ptr(10), ForecastID: ptr(100)}, // both present
		{ID: 2, HarvestID: ptr(11), ForecastID: ptr(101)}, // both gone
		{ID: 3, HarvestID: ptr(12), ForecastID: ptr(102)}, // harvest gone
		{ID: 4, HarvestID: ptr(13), ForecastID: ptr(103)}, // forecast gone
		{ID: 5, ForecastID: ptr(104)},                     // orphan gone
		{ID: 6, HarvestID: ptr(14)},                       // harvest only, present
		{ID: 7, HarvestID: ptr(15)},                       // harvest only, gone
	}
	harvestIDs := []int64{10, 13, 14}
	forecastIDs := []int64{100, 102}

	plan := StaleIdentities(warehouse, harvestIDs, forecastIDs)

	assert.Equal(t, []int64{2, 5, 7}, plan.Deletes)
	assert.Equal(t, []Detach{{ID: 3, Side: SideHarvest}, {ID: 4, Side: SideForecast}}, plan.Detaches)
	assert.False(t, plan.Empty())
}

func TestStaleIdentities_NothingStale(t *testing.T) {
	warehouse := []Identity{{ID: 1, HarvestID: ptr(10), ForecastID: ptr(100)}}
	assert.True(t, StaleIdentities(warehouse, []int64{10}, []int64{100}).Empty())
}

func TestEngine_Purge(t *testing.T) {
	engine := NewEngine(logging.NewNop())
	missing := errors.New("row not found")

	var deleted []int64
	summary := engine.Purge(context.Background(), models.KindTimeEntries, []int64{1, 2, 3}, func(_ context.Context, id int64) error {
		if id == 2 {
			return missing
		}
		deleted = append(deleted, id)
		return nil
	})

	assert.Equal(t, []int64{1, 3}, deleted)
	assert.Equal(t, 3, summary.Candidates)
	assert.Equal(t, 2, summary.Purged)
	assert.Equal(t, 1, summary.Failed)
	require.Contains(t, summary.Failures, int64(2))
	assert.ErrorIs(t, summary.Failures[2], missing)
}

func TestEngine_Apply(t *testing.T) {
	engine := NewEngine(logging.NewNop())
	plan := Plan{
		Deletes:  []int64{2},
		Detaches: []Detach{{ID: 3, Side: SideHarvest}, {ID: 4, Side: SideForecast}},
	}

	var detached []Detach
	summary := engine.Apply(context.Background(), models.KindPeople, plan,
		func(_ context.Context, d Detach) error {
			if d.ID == 4 {
				return errors.New("boom")
			}
			detached = append(detached, d)
			return nil
		},
		func(context.Context, int64) error { return nil },
	)

	assert.Equal(t, []Detach{{ID: 3, Side: SideHarvest}}, detached)
	assert.Equal(t, 3, summary.Candidates)
	assert.Equal(t, 1, summary.Purged)
	assert.Equal(t, 1, summary.Detached)
	assert.Equal(t, 1, summary.Failed)
}

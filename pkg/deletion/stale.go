package deletion

import "slices"

// StaleIDs returns the warehouse ids missing from the source, ascending.
func StaleIDs(warehouse, source []int64) []int64 {
	present := toSet(source)
	stale := make([]int64, 0)
	for _, id := range warehouse {
		if !present[id] {
			stale = append(stale, id)
		}
	}
	slices.Sort(stale)
	return slices.Compact(stale)
}

// Identity is a dual-identity warehouse row.
type Identity struct {
	ID         int64  `db:"id"`
	HarvestID  *int64 `db:"harvest_id"`
	ForecastID *int64 `db:"forecast_id"`
}

type Side string

const (
	SideHarvest  Side = "harvest"
	SideForecast Side = "forecast"
)

// Detach clears one source id from a row that is still present in the other
// source.
type Detach struct {
	ID   int64
	Side Side
}

type Plan struct {
	Deletes  []int64
	Detaches []Detach
}

func (p Plan) Empty() bool {
	return len(p.Deletes) == 0 && len(p.Detaches) == 0
}

// StaleIdentities compares dual-identity rows with both complete source id
// sets. A row none of whose set ids survive is deleted; a row that lost only
// one side has that side detached.
func StaleIdentities(warehouse []Identity, harvestIDs, forecastIDs []int64) Plan {
	inHarvest := toSet(harvestIDs)
	inForecast := toSet(forecastIDs)

	var plan Plan
	for _, row := range warehouse {
		harvestGone := row.HarvestID != nil && !inHarvest[*row.HarvestID]
		forecastGone := row.ForecastID != nil && !inForecast[*row.ForecastID]
		harvestKept := row.HarvestID != nil && !harvestGone
		forecastKept := row.ForecastID != nil && !forecastGone

		switch {
		case !harvestKept && !forecastKept:
			plan.Deletes = append(plan.Deletes, row.ID)
		case harvestGone:
			plan.Detaches = append(plan.Detaches, Detach{ID: row.ID, Side: SideHarvest})
		case forecastGone:
			plan.Detaches = append(plan.Detaches, Detach{ID: row.ID, Side: SideForecast})
		}
	}
	return plan
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

package result

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Tally counts the outcomes of one kind and keeps its failures.
type Tally struct {
	Kind     models.EntityKind
	Counts   map[Status]int
	Failures []Outcome
}

func NewTally(kind models.EntityKind) *Tally {
	return &Tally{Kind: kind, Counts: make(map[Status]int)}
}

func (t *Tally) Add(o Outcome) {
	t.Counts[o.Status]++
	if o.IsFailure() {
		t.Failures = append(t.Failures, o)
	}
}

func (t *Tally) Total() int {
	total := 0
	for _, count := range t.Counts {
		total += count
	}
	return total
}

func (t *Tally) Count(status Status) int {
	return t.Counts[status]
}

// Report holds every tally of a run.
type Report struct {
	RunID      string
	FullLoad   bool
	Kinds      []models.EntityKind
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error
	tallies    map[models.EntityKind]*Tally
}

func NewReport(runID string, kinds []models.EntityKind, fullLoad bool, startedAt time.Time) *Report {
	return &Report{
		RunID:     runID,
		FullLoad:  fullLoad,
		Kinds:     kinds,
		StartedAt: startedAt,
		tallies:   make(map[models.EntityKind]*Tally),
	}
}

func (r *Report) Add(o Outcome) {
	r.Tally(o.Kind).Add(o)
}

func (r *Report) Tally(kind models.EntityKind) *Tally {
	tally, ok := r.tallies[kind]
	if !ok {
		tally = NewTally(kind)
		r.tallies[kind] = tally
	}
	return tally
}

// Tallies are returned in stage order.
func (r *Report) Tallies() []*Tally {
	tallies := make([]*Tally, 0, len(r.tallies))
	for _, kind := range models.AllKinds {
		if tally, ok := r.tallies[kind]; ok {
			tallies = append(tallies, tally)
		}
	}
	return tallies
}

func (r *Report) Failures() int {
	failures := 0
	for _, tally := range r.tallies {
		failures += tally.Count(StatusFailed)
	}
	return failures
}

func (r *Report) Success() bool {
	return r.Err == nil
}

// Documents is the run log payload of the completion row.
func (r *Report) Documents() map[string]any {
	counts := make(map[string]any, len(r.tallies))
	for _, tally := range r.Tallies() {
		kindCounts := make(map[string]int, len(tally.Counts))
		for status, count := range tally.Counts {
			kindCounts[string(status)] = count
		}
		counts[string(tally.Kind)] = kindCounts
	}

	documents := map[string]any{
		"run_id":    r.RunID,
		"full_load": r.FullLoad,
		"kinds": ectolinq.Map(r.Kinds, func(kind models.EntityKind) string {
			return string(kind)
		}),
		"started_at": r.StartedAt.UTC().Format(time.RFC3339),
		"counts":     counts,
		"failures":   r.Failures(),
	}
	if !r.FinishedAt.IsZero() {
		documents["finished_at"] = r.FinishedAt.UTC().Format(time.RFC3339)
		documents["duration_seconds"] = r.FinishedAt.Sub(r.StartedAt).Seconds()
	}
	if r.Err != nil {
		documents["error"] = r.Err.Error()
	}
	return documents
}

// Render writes the per-kind tally table.
func (r *Report) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "kind\t")
	for _, status := range Statuses {
		fmt.Fprintf(tw, "%s\t", status)
	}
	fmt.Fprintln(tw)

	for _, tally := range r.Tallies() {
		fmt.Fprintf(tw, "%s\t", tally.Kind)
		for _, status := range Statuses {
			fmt.Fprintf(tw, "%d\t", tally.Count(status))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

package reconcile

import "time"

// Match pairs a Source A record with its Source B counterpart. Secondary is
// nil when Source B has no record for the shared key.
type Match[A, B any] struct {
	Primary   A
	Secondary *B
}

// Conflict is a Source B record that lost a duplicate shared-key contest.
type Conflict[B any] struct {
	Key    int64
	Record B
	Winner B
}

type JoinResult[A, B any] struct {
	Matched   []Match[A, B]
	Residual  []B
	Conflicts []Conflict[B]
}

// Join hash-joins as against bs on the shared key. keyB returns nil when a
// Source B record carries no link to Source A; those go straight to Residual.
// When several bs share a key, prefer(x, y) reports whether x beats y and the
// losers are returned as Conflicts only.
func Join[A, B any](as []A, bs []B, keyA func(A) int64, keyB func(B) *int64, prefer func(x, y B) bool) JoinResult[A, B] {
	var result JoinResult[A, B]

	byKey := make(map[int64]int, len(bs))
	winners := make([]bool, len(bs))
	for i, b := range bs {
		key := keyB(b)
		if key == nil {
			continue
		}
		current, seen := byKey[*key]
		if !seen {
			byKey[*key] = i
			winners[i] = true
			continue
		}
		if prefer(b, bs[current]) {
			winners[current] = false
			winners[i] = true
			byKey[*key] = i
		}
	}

	// Losers are reported in input order against the final winner.
	for i, b := range bs {
		key := keyB(b)
		if key == nil || winners[i] {
			continue
		}
		result.Conflicts = append(result.Conflicts, Conflict[B]{Key: *key, Record: b, Winner: bs[byKey[*key]]})
	}

	matched := make(map[int64]bool, len(as))
	result.Matched = make([]Match[A, B], 0, len(as))
	for _, a := range as {
		key := keyA(a)
		match := Match[A, B]{Primary: a}
		if i, ok := byKey[key]; ok {
			b := bs[i]
			match.Secondary = &b
			matched[key] = true
		}
		result.Matched = append(result.Matched, match)
	}

	for i, b := range bs {
		key := keyB(b)
		switch {
		case key == nil:
			result.Residual = append(result.Residual, b)
		case winners[i] && !matched[*key]:
			result.Residual = append(result.Residual, b)
		}
	}

	return result
}

// NewerFirst is the duplicate policy used by the sync: the later updated time
// wins and ties go to the lower id.
func NewerFirst[B any](updated func(B) time.Time, id func(B) int64) func(x, y B) bool {
	return func(x, y B) bool {
		ux, uy := updated(x), updated(y)
		if !ux.Equal(uy) {
			return ux.After(uy)
		}
		return id(x) < id(y)
	}
}

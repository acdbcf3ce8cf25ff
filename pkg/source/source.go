package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Rejection is a source record that could not be decoded or failed
// validation. Key is the record's "id" when it could be read.
type Rejection struct {
	Index int
	Key   string
	Raw   json.RawMessage
	Err   error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("record %s rejected: %v", r.Key, r.Err)
}

// Batch is one decoded collection. A bad record never fails the batch.
type Batch[T any] struct {
	Records    []T
	Rejections []Rejection
}

func (b *Batch[T]) Append(other Batch[T]) {
	offset := len(b.Records) + len(b.Rejections)
	b.Records = append(b.Records, other.Records...)
	for _, rejection := range other.Rejections {
		rejection.Index += offset
		b.Rejections = append(b.Rejections, rejection)
	}
}

func (b Batch[T]) Len() int {
	return len(b.Records) + len(b.Rejections)
}

// Decode unmarshals and validates each record on its own.
func Decode[T any](raws []json.RawMessage) Batch[T] {
	batch := Batch[T]{Records: make([]T, 0, len(raws))}
	for i, raw := range raws {
		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			batch.Rejections = append(batch.Rejections, reject(i, raw, fmt.Errorf("decode: %w", err)))
			continue
		}
		if err := validate.Struct(record); err != nil {
			batch.Rejections = append(batch.Rejections, reject(i, raw, fmt.Errorf("validate: %w", err)))
			continue
		}
		batch.Records = append(batch.Records, record)
	}
	return batch
}

func reject(index int, raw json.RawMessage, err error) Rejection {
	var probe struct {
		ID json.Number `json:"id"`
	}
	key := "unknown"
	if json.Unmarshal(raw, &probe) == nil && probe.ID != "" {
		key = probe.ID.String()
	}
	return Rejection{Index: index, Key: key, Raw: raw, Err: err}
}

// UpdatedSince keeps records updated at or after since. Forecast has no
// server-side filter, so its collections are trimmed here.
func UpdatedSince[T any](records []T, since time.Time, updatedAt func(T) time.Time) []T {
	return ectolinq.Filter(records, func(record T) bool {
		return !updatedAt(record).Before(since)
	})
}

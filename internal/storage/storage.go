package storage

import "multicallScope/internal/model"

// Archive defines a sink for processed allocation events.
type Archive interface {
	PutEventBatch(events []model.EventRecord) error
}

package dataset

import (
	"lumi/internal/event"
	"lumi/internal/weight"
)

// WeightedEventRepository stores selected events together with their dataset
// and weight. Append reports events that could not be written.
type WeightedEventRepository interface {
	Append(dsid weight.DatasetID, w float64, e event.Event) error
	Close() error
}

// DiscardRepository drops every event. Used when no output file is configured.
type DiscardRepository struct{}

func (DiscardRepository) Append(weight.DatasetID, float64, event.Event) error { return nil }

func (DiscardRepository) Close() error { return nil }

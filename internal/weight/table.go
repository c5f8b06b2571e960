package weight

import (
	"errors"
	"fmt"
	"strings"
)

// DatasetID is the unique identifier of a simulated sample (DSID).
type DatasetID int64

// ErrUnknownDataset is matched by every UnknownDatasetError through errors.Is.
var ErrUnknownDataset = errors.New("unknown dataset")

// UnknownDatasetError is returned when a weight is requested for an identifier
// that has never been set or was removed by Clear.
type UnknownDatasetError struct {
	ID DatasetID
}

// Error returns the text description of the error.
func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unknown dataset: %d", e.ID)
}

// Is reports whether target is ErrUnknownDataset.
func (e *UnknownDatasetError) Is(target error) bool {
	return target == ErrUnknownDataset
}

// NewUnknownDatasetError creates an UnknownDatasetError for the given identifier.
func NewUnknownDatasetError(id DatasetID) *UnknownDatasetError {
	return &UnknownDatasetError{ID: id}
}

// MissingPolicy decides what a caller gets for an identifier absent from the table.
type MissingPolicy string

const (
	// MissingZero yields scale*0.0, i.e. the event is weighted away.
	MissingZero MissingPolicy = "zero"
	// MissingError yields an UnknownDatasetError.
	MissingError MissingPolicy = "error"
)

// ParseMissingPolicy converts a configuration value into a MissingPolicy.
// An empty value selects MissingZero.
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(strings.ToLower(s)) {
	case "", MissingZero:
		return MissingZero, nil
	case MissingError:
		return MissingError, nil
	default:
		return "", fmt.Errorf("unsupported missing dataset policy '%s'", s)
	}
}

// Store is the common surface of Table and SyncTable.
type Store interface {
	Clear()
	SetWeight(id DatasetID, w float64)
	SetScale(scale float64)
	Weight(id DatasetID) (float64, error)
	Lookup(id DatasetID) (float64, bool)
}

// Resolve looks id up in s and applies policy when the identifier is unknown.
func Resolve(s Store, id DatasetID, policy MissingPolicy) (float64, error) {
	w, found := s.Lookup(id)
	if found {
		return w, nil
	}
	return policy.Missing(id)
}

// Missing returns the weight of the unknown dataset id under p.
func (p MissingPolicy) Missing(id DatasetID) (float64, error) {
	if p == MissingError {
		return 0, NewUnknownDatasetError(id)
	}
	return 0, nil
}

// Table maps dataset identifiers to per-dataset weights and applies one global
// scale to every lookup.
//
// Table is not safe for concurrent use; wrap it in a SyncTable when several
// goroutines share it.
//
// Example:
//
//	t := weight.NewTable()
//	t.SetWeight(100, 2.0)
//	t.SetScale(1.5)
//	w, _ := t.Weight(100) // 3.0
type Table struct {
	weights map[DatasetID]float64 // per-dataset weights, unscaled
	scale   float64               // global multiplier, 1.0 until SetScale
}

// NewTable creates an empty table with scale 1.0.
func NewTable() *Table {
	return &Table{
		weights: make(map[DatasetID]float64),
		scale:   1.0,
	}
}

// Clear removes every weight. The scale is left untouched.
func (t *Table) Clear() {
	clear(t.weights)
}

// SetWeight inserts or replaces the weight of id. Any value is accepted,
// including negative and non-finite ones.
func (t *Table) SetWeight(id DatasetID, w float64) {
	t.weights[id] = w
}

// SetScale replaces the global scale.
func (t *Table) SetScale(scale float64) {
	t.scale = scale
}

// Scale returns the current global scale.
func (t *Table) Scale() float64 {
	return t.scale
}

// Weight returns scale*weight for id. If id is not present an
// UnknownDatasetError is returned; the lookup never inserts an entry.
func (t *Table) Weight(id DatasetID) (float64, error) {
	w, found := t.Lookup(id)
	if !found {
		return 0, NewUnknownDatasetError(id)
	}
	return w, nil
}

// Lookup returns scale*weight for id and whether id is present.
func (t *Table) Lookup(id DatasetID) (float64, bool) {
	w, found := t.weights[id]
	if !found {
		return 0, false
	}
	return t.scale * w, true
}

// WeightOrZero returns scale*weight for id, or scale*0.0 for an unknown id.
func (t *Table) WeightOrZero(id DatasetID) float64 {
	return t.scale * t.weights[id]
}

// Has reports whether a weight is stored for id.
func (t *Table) Has(id DatasetID) bool {
	_, found := t.weights[id]
	return found
}

// Len returns the number of stored weights.
func (t *Table) Len() int {
	return len(t.weights)
}

// Snapshot returns a copy of all effective (scaled) weights.
func (t *Table) Snapshot() map[DatasetID]float64 {
	result := make(map[DatasetID]float64, len(t.weights))
	for id, w := range t.weights {
		result[id] = t.scale * w
	}
	return result
}

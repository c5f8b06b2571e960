package weight

import "sync"

// SyncTable is a Table guarded by a single RWMutex. Every method is one
// critical section: mutators take the write lock, lookups the read lock.
type SyncTable struct {
	table *Table
	mu    sync.RWMutex
}

// NewSyncTable creates an empty synchronized table with scale 1.0.
func NewSyncTable() *SyncTable {
	return &SyncTable{table: NewTable()}
}

// Clear removes every weight; the scale is kept.
func (s *SyncTable) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Clear()
}

// SetWeight stores the unscaled weight of id, replacing any previous value.
func (s *SyncTable) SetWeight(id DatasetID, w float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.SetWeight(id, w)
}

// SetScale replaces the global scale.
func (s *SyncTable) SetScale(scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.SetScale(scale)
}

// Scale returns the current global scale.
func (s *SyncTable) Scale() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Scale()
}

// Weight returns the effective weight of id or an *UnknownDatasetError.
func (s *SyncTable) Weight(id DatasetID) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Weight(id)
}

// Lookup returns the effective weight of id and whether id is known.
func (s *SyncTable) Lookup(id DatasetID) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Lookup(id)
}

// WeightOrZero returns the effective weight of id, or 0.0 when id is unknown.
func (s *SyncTable) WeightOrZero(id DatasetID) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.WeightOrZero(id)
}

// Len returns the number of stored datasets.
func (s *SyncTable) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Len()
}

// Snapshot returns a copy of all effective weights.
func (s *SyncTable) Snapshot() map[DatasetID]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Snapshot()
}

// Replace swaps all weights in one critical section, so concurrent readers
// see either the old or the new contents. The current scale is kept.
func (s *SyncTable) Replace(weights map[DatasetID]float64) {
	table := NewTable()
	for id, w := range weights {
		table.SetWeight(id, w)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	table.SetScale(s.table.Scale())
	s.table = table
}

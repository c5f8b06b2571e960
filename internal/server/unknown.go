package server

import (
	"sync"
	"time"

	"lumi/internal/weight"
)

// UnknownLookup records one request for a dataset missing from the table.
type UnknownLookup struct {
	DatasetID weight.DatasetID `json:"dsid"`
	Time      time.Time        `json:"time"`
}

// UnknownLog keeps the most recent unknown dataset lookups in a fixed-size ring.
// When the ring is full the oldest record is overwritten.
// Useful to spot samples missing from the cross-section or counts tables.
type UnknownLog struct {
	data  []UnknownLookup
	count int // number of stored records, at most len(data)
	head  int // index of the oldest record
	mu    sync.Mutex
}

// NewUnknownLog creates a log holding up to size records.
// size must be positive, otherwise the call panics.
func NewUnknownLog(size int) *UnknownLog {
	if size <= 0 {
		panic("unknown log size must be positive")
	}
	return &UnknownLog{data: make([]UnknownLookup, size)}
}

// Push stores a lookup of id at time t.
func (l *UnknownLog) Push(id weight.DatasetID, t time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := len(l.data)
	l.data[(l.head+l.count)%size] = UnknownLookup{DatasetID: id, Time: t}
	if l.count < size {
		l.count++
	} else {
		l.head = (l.head + 1) % size
	}
}

// Len returns the number of stored records.
func (l *UnknownLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Recent returns a copy of the stored records, oldest first.
func (l *UnknownLog) Recent() []UnknownLookup {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]UnknownLookup, l.count)
	for i := range result {
		result[i] = l.data[(l.head+i)%len(l.data)]
	}
	return result
}

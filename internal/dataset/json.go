package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"lumi/internal/event"
	"lumi/internal/weight"
)

// recordHandler is a slog handler writing every record as one flat JSON
// object: the record time followed by its attributes at the top level.
// Level and message are omitted; the output is data, not a log.
type recordHandler struct {
	out   io.Writer
	attrs []slog.Attr
	mu    *sync.Mutex
}

func newRecordHandler(out io.Writer) *recordHandler {
	return &recordHandler{out: out, mu: &sync.Mutex{}}
}

// Handle serializes r as a JSON line.
func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, r.NumAttrs()+len(h.attrs)+1)
	fields["time"] = r.Time.Format(time.RFC3339Nano)

	add := func(a slog.Attr) bool {
		if a.Key != "" {
			fields[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(data, '\n'))
	return err
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *recordHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &recordHandler{out: h.out, attrs: merged, mu: h.mu}
}

// WithGroup is not supported: groups are flattened.
func (h *recordHandler) WithGroup(string) slog.Handler {
	return h
}

// Enabled accepts every level.
func (h *recordHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// JsonWeightedEventRepository writes selected events with their weights to a
// JSON-lines file rotated and compressed by lumberjack.
// Every record carries the run identifier so files from several runs can be merged.
type JsonWeightedEventRepository struct {
	lumberjack *lumberjack.Logger
	handler    slog.Handler
	run        string
}

// NewJsonWeightedEventRepository creates a repository writing to file.
// Parameters:
// - file: path of the output file
// - maxSize: maximum file size in MB before rotation
// - maxBackups: maximum number of rotated files to keep
func NewJsonWeightedEventRepository(file string, maxSize, maxBackups int) *JsonWeightedEventRepository {
	repo := JsonWeightedEventRepository{run: uuid.NewString()}
	repo.lumberjack = &lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	repo.handler = newRecordHandler(repo.lumberjack).WithAttrs([]slog.Attr{
		slog.String("run", repo.run),
	})
	return &repo
}

// Run returns the identifier attached to every record.
func (r *JsonWeightedEventRepository) Run() string {
	return r.run
}

// Append writes one weighted event. Non-finite weights are written as
// "NaN", "+Inf" or "-Inf". The handler is called directly because
// slog.Logger drops handler errors.
func (r *JsonWeightedEventRepository) Append(dsid weight.DatasetID, w float64, e event.Event) error {
	record := slog.NewRecord(time.Now(), slog.LevelInfo, "", 0)
	record.AddAttrs(
		slog.Int64("dsid", int64(dsid)),
		slog.Any("weight", weight.JSONFloat(w)),
		slog.Any("event", map[string]any(e)),
	)
	if err := r.handler.Handle(context.Background(), record); err != nil {
		return fmt.Errorf("dataset %d: %w", dsid, err)
	}
	return nil
}

// Close flushes and closes the current file.
func (r *JsonWeightedEventRepository) Close() error {
	return r.lumberjack.Close()
}

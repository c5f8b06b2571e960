// Package xsec reads sample cross-section and event-count tables and turns
// them into per-dataset luminosity weights.
//
// Cross-section file, whitespace delimited, '#' starts a comment line:
//
//	# dsid  name         xs(pb)   kfactor  filter_eff
//	410000  ttbar_nonallhad  377.9  1.195  0.543
//
// Counts file:
//
//	# dsid  nevt     summed_weights
//	410000  4990000  4.98e6
package xsec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"lumi/internal/weight"
)

// ParseError describes a malformed line in a cross-section or counts file.
type ParseError struct {
	File string
	Line int
	Msg  string
}

// Error returns the text description of the error.
func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// CrossSection is one row of the cross-section file.
type CrossSection struct {
	Name    string
	XS      float64
	KFactor float64
	Filter  float64
}

// Count is one row of the counts file.
type Count struct {
	Events        int64
	SummedWeights float64
}

// ParseCrossSections reads a cross-section table. A later row for the same
// DSID replaces an earlier one.
func ParseCrossSections(r io.Reader) (map[weight.DatasetID]CrossSection, error) {
	result := make(map[weight.DatasetID]CrossSection)
	err := scanFields(r, 5, func(fields []string) error {
		id, err := parseID(fields[0])
		if err != nil {
			return err
		}
		var xs CrossSection
		xs.Name = fields[1]
		if xs.XS, err = parseFloat("cross-section", fields[2]); err != nil {
			return err
		}
		if xs.KFactor, err = parseFloat("k-factor", fields[3]); err != nil {
			return err
		}
		if xs.Filter, err = parseFloat("filter efficiency", fields[4]); err != nil {
			return err
		}
		result[id] = xs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ParseCounts reads an event-count table.
func ParseCounts(r io.Reader) (map[weight.DatasetID]Count, error) {
	result := make(map[weight.DatasetID]Count)
	err := scanFields(r, 3, func(fields []string) error {
		id, err := parseID(fields[0])
		if err != nil {
			return err
		}
		var c Count
		if c.Events, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
			return fmt.Errorf("invalid event count '%s'", fields[1])
		}
		if c.SummedWeights, err = parseFloat("summed weights", fields[2]); err != nil {
			return err
		}
		result[id] = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Weights computes xs*kfactor*filter/summed_weights for every DSID present in
// both tables. DSIDs found in only one table are skipped.
func Weights(xs map[weight.DatasetID]CrossSection, counts map[weight.DatasetID]Count) map[weight.DatasetID]float64 {
	result := make(map[weight.DatasetID]float64)
	for id, x := range xs {
		c, found := counts[id]
		if !found {
			slog.Debug("No event count for dataset", "dsid", id, "name", x.Name)
			continue
		}
		result[id] = x.XS * x.KFactor * x.Filter / c.SummedWeights
	}
	for id := range counts {
		if _, found := xs[id]; !found {
			slog.Debug("No cross-section for dataset", "dsid", id)
		}
	}
	return result
}

// LoadWeights reads both files and returns the computed per-dataset weights.
func LoadWeights(xsFile, countsFile string) (map[weight.DatasetID]float64, error) {
	xs, err := parseFile(xsFile, ParseCrossSections)
	if err != nil {
		return nil, err
	}
	counts, err := parseFile(countsFile, ParseCounts)
	if err != nil {
		return nil, err
	}
	return Weights(xs, counts), nil
}

// Init clears store, sets its scale and fills it with the weights computed from
// the two files. On a read error the store is left untouched.
func Init(store weight.Store, xsFile, countsFile string, scale float64) error {
	weights, err := LoadWeights(xsFile, countsFile)
	if err != nil {
		return err
	}

	store.Clear()
	store.SetScale(scale)
	for id, w := range weights {
		store.SetWeight(id, w)
	}
	slog.Info("Luminosity weights loaded", "datasets", len(weights), "scale", scale)
	return nil
}

func parseFile[T any](file string, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(file)
	if err != nil {
		return zero, err
	}
	defer f.Close()

	result, err := parse(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = file
		}
		return zero, err
	}
	return result, nil
}

// scanFields calls fn for every non-blank, non-comment line that has at least
// minFields whitespace separated fields.
func scanFields(r io.Reader, minFields int, fn func(fields []string) error) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < minFields {
			return &ParseError{Line: line, Msg: fmt.Sprintf("expected %d fields, got %d", minFields, len(fields))}
		}
		if err := fn(fields); err != nil {
			return &ParseError{Line: line, Msg: err.Error()}
		}
	}
	return scanner.Err()
}

func parseID(s string) (weight.DatasetID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid dataset id '%s'", s)
	}
	return weight.DatasetID(id), nil
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s'", field, s)
	}
	return v, nil
}

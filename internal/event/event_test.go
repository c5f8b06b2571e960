package event

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumi/internal/weight"
)

var testSchema = Schema{
	"mc_dataset_id": TypeInt,
	"n_lep":         TypeInt,
	"met":           TypeDouble,
	"trigger":       TypeBool,
	"channel":       TypeString,
}

func TestSchema_Validate(t *testing.T) {
	assert.NoError(t, testSchema.Validate())
	assert.Error(t, Schema{"x": "float"}.Validate())
}

func TestReader_Next(t *testing.T) {
	input := `{"mc_dataset_id": 410000, "n_lep": 2, "met": 45, "trigger": true, "channel": "ee", "extra": [1]}

{"mc_dataset_id": 361106, "n_lep": 1, "met": 12.5, "trigger": false, "channel": "mu"}
`
	reader := NewReader(strings.NewReader(input), testSchema)

	e, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{
		"mc_dataset_id": int64(410000),
		"n_lep":         int64(2),
		"met":           45.0,
		"trigger":       true,
		"channel":       "ee",
	}, e, "undeclared fields should be dropped")

	e, err = reader.Next()
	require.NoError(t, err)
	assert.Equal(t, 12.5, e["met"])
	assert.Equal(t, 3, reader.Line())

	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReader_Next_DecodeError(t *testing.T) {
	input := "not json\n{\"n_lep\": 1.5}\n{\"n_lep\": 3}\n"
	reader := NewReader(strings.NewReader(input), testSchema)

	_, err := reader.Next()
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Line)

	_, err = reader.Next()
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Line)
	assert.Contains(t, err.Error(), "variable n_lep")

	e, err := reader.Next()
	require.NoError(t, err, "reader should continue after a decode error")
	assert.Equal(t, int64(3), e["n_lep"])
}

func TestEvent_DatasetID(t *testing.T) {
	e := Event{"mc_dataset_id": int64(410000), "channel": "ee"}

	id, ok := e.DatasetID("mc_dataset_id")
	assert.True(t, ok)
	assert.Equal(t, weight.DatasetID(410000), id)

	_, ok = e.DatasetID("channel")
	assert.False(t, ok)
	_, ok = e.DatasetID("missing")
	assert.False(t, ok)
}

func evalDouble(t *testing.T, schema Schema, store weight.Store, policy weight.MissingPolicy, expr string, e Event) (float64, error) {
	t.Helper()
	env, err := NewEnv(schema, store, policy)
	require.NoError(t, err)
	ast, iss := env.Compile(expr)
	require.NoError(t, iss.Err())
	program, err := env.Program(ast)
	require.NoError(t, err)

	out, _, err := program.Eval(map[string]any(e))
	if err != nil {
		return 0, err
	}
	return out.Value().(float64), nil
}

func TestNewEnv_LumiWeight(t *testing.T) {
	table := weight.NewTable()
	table.SetWeight(410000, 2.0)
	table.SetScale(1.5)

	w, err := evalDouble(t, testSchema, table, weight.MissingError,
		"lumi_weight(mc_dataset_id) * (n_lep >= 2 ? 1.0 : 0.0)",
		Event{"mc_dataset_id": int64(410000), "n_lep": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, 3.0, w)
}

func TestNewEnv_LumiWeight_MissingZero(t *testing.T) {
	table := weight.NewTable()

	w, err := evalDouble(t, testSchema, table, weight.MissingZero,
		"lumi_weight(mc_dataset_id)", Event{"mc_dataset_id": int64(999)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, w)
	assert.Equal(t, 0, table.Len(), "lookup must not insert an entry")
}

func TestNewEnv_LumiWeight_MissingError(t *testing.T) {
	table := weight.NewTable()

	_, err := evalDouble(t, testSchema, table, weight.MissingError,
		"lumi_weight(mc_dataset_id)", Event{"mc_dataset_id": int64(999)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, weight.ErrUnknownDataset) || strings.Contains(err.Error(), "unknown dataset: 999"))
}

type countingStore struct {
	*weight.Table
	lookups int
}

func (s *countingStore) Lookup(id weight.DatasetID) (float64, bool) {
	s.lookups++
	return s.Table.Lookup(id)
}

func TestNewEnv_LumiWeight_SingleLookup(t *testing.T) {
	for _, policy := range []weight.MissingPolicy{weight.MissingZero, weight.MissingError} {
		store := &countingStore{Table: weight.NewTable()}

		_, _ = evalDouble(t, testSchema, store, policy,
			"lumi_weight(mc_dataset_id)", Event{"mc_dataset_id": int64(999)})
		assert.Equal(t, 1, store.lookups, "policy %s: unknown dataset should be looked up once", policy)
	}
}

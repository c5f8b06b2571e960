package event

import (
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"lumi/internal/metrics"
	"lumi/internal/weight"
)

// LumiWeightFunction is the CEL function returning the luminosity weight of a dataset.
const LumiWeightFunction = "lumi_weight"

// NewEnv creates a CEL environment that declares every schema variable and the
// function lumi_weight(int) -> double backed by store.
//
// For a dataset missing from store, lumi_weight yields 0.0 under MissingZero and
// an evaluation error wrapping weight.UnknownDatasetError under MissingError.
func NewEnv(schema Schema, store weight.Store, policy weight.MissingPolicy) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(schema)+1)
	for name, typ := range schema {
		opts = append(opts, cel.Variable(name, celType(typ)))
	}

	opts = append(opts, cel.Function(LumiWeightFunction,
		cel.Overload("lumi_weight_int",
			[]*cel.Type{cel.IntType},
			cel.DoubleType,
			cel.UnaryBinding(func(v ref.Val) ref.Val {
				id, ok := v.(types.Int)
				if !ok {
					return types.MaybeNoSuchOverloadErr(v)
				}
				w, found := store.Lookup(weight.DatasetID(id))
				if found {
					metrics.LookupsTotal.WithLabelValues(metrics.ResultFound).Inc()
					return types.Double(w)
				}
				metrics.LookupsTotal.WithLabelValues(metrics.ResultUnknown).Inc()
				w, err := policy.Missing(weight.DatasetID(id))
				if err != nil {
					return types.WrapErr(err)
				}
				return types.Double(w)
			}),
		),
	))

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	return env, nil
}

func celType(typ string) *cel.Type {
	switch typ {
	case TypeInt:
		return cel.IntType
	case TypeDouble:
		return cel.DoubleType
	case TypeBool:
		return cel.BoolType
	case TypeString:
		return cel.StringType
	default:
		return cel.DynType
	}
}

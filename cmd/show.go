package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"lumi/internal/weight"
	"lumi/internal/xsec"
)

var showCmd = &cobra.Command{
	Use:   "show [dsid...]",
	Short: "Print effective luminosity weights",
	Long:  "show prints the effective weight of the given datasets, or of every dataset when none is given.",
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	table := weight.NewTable()
	if err := xsec.Init(table, config.Weights.CrossSections, config.Weights.Counts, config.Weights.Scale); err != nil {
		return fmt.Errorf("unable to load weights: %w", err)
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		snapshot := table.Snapshot()
		ids := make([]weight.DatasetID, 0, len(snapshot))
		for id := range snapshot {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		fmt.Fprintf(out, "# scale %g\n", table.Scale())
		for _, id := range ids {
			fmt.Fprintf(out, "%d\t%g\n", id, snapshot[id])
		}
		return nil
	}

	policy := config.Weights.MissingPolicy()
	for _, arg := range args {
		raw, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid dataset id '%s'", arg)
		}
		w, err := weight.Resolve(table, weight.DatasetID(raw), policy)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%g\n", raw, w)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/cel-go/cel"
	"github.com/spf13/cobra"

	"lumi/internal/analysis"
	"lumi/internal/dataset"
	"lumi/internal/event"
	"lumi/internal/selection"
	"lumi/internal/weight"
	"lumi/internal/xsec"
)

var weighCmd = &cobra.Command{
	Use:   "weigh [events.jsonl]",
	Short: "Apply the selection and luminosity weights to an event stream",
	Long: "weigh reads JSON-lines events from a file or stdin, applies the configured cuts, " +
		"weights the surviving events and prints the cutflow and per-dataset yields.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWeigh,
}

func init() {
	weighCmd.Flags().Bool("json", false, "print the summary as JSON")
}

func runWeigh(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	table := weight.NewTable()
	if err := xsec.Init(table, config.Weights.CrossSections, config.Weights.Counts, config.Weights.Scale); err != nil {
		return fmt.Errorf("unable to load weights: %w", err)
	}

	schema := config.Events.Schema()
	env, err := event.NewEnv(schema, table, config.Weights.MissingPolicy())
	if err != nil {
		return fmt.Errorf("unable to initialize expression environment: %w", err)
	}

	sel, err := loadSelection(env)
	if err != nil {
		return fmt.Errorf("unable to load selection: %w", err)
	}

	input := io.Reader(cmd.InOrStdin())
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		input = f
	}

	var output dataset.WeightedEventRepository = dataset.DiscardRepository{}
	if config.Output.File != "" {
		repo := dataset.NewJsonWeightedEventRepository(config.Output.File, config.Output.Size, config.Output.Amount)
		slog.Info("Writing weighted events", "file", config.Output.File, "run", repo.Run())
		output = repo
	}

	runner := analysis.NewRunner(schema, config.Events.DatasetField, sel, output)
	summary, runErr := runner.Run(ctx, input)
	runErr = closeOutput(output, runErr)
	slog.Info("Events processed", "read", summary.Read, "selected", summary.Selected, "errors", summary.Errors)

	asJSON, _ := cmd.Flags().GetBool("json")
	if err := printSummary(cmd.OutOrStdout(), summary, asJSON); err != nil {
		return err
	}
	return runErr
}

// closeOutput closes output and returns runErr, or the close error when the
// run itself succeeded.
func closeOutput(output dataset.WeightedEventRepository, runErr error) error {
	if err := output.Close(); err != nil {
		slog.Error("Unable to close weighted event output", "error", err)
		if runErr == nil {
			return fmt.Errorf("unable to close output: %w", err)
		}
	}
	return runErr
}

// loadSelection reads the configured selection file. Without one, every event
// is selected and weighted with the default lumi_weight expression.
func loadSelection(env *cel.Env) (*selection.Selection, error) {
	defaultWeight := config.Events.DefaultWeight()
	if config.Selection.File == "" {
		sel := &selection.Selection{}
		if err := sel.Init(env, defaultWeight); err != nil {
			return nil, err
		}
		return sel, nil
	}
	return selection.LoadFromFile(config.Selection.File, env, defaultWeight)
}

func printSummary(out io.Writer, summary analysis.Summary, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}

	fmt.Fprintln(out, "Cutflow:")
	fmt.Fprint(out, summary.CutflowString())
	fmt.Fprintln(out, "Yields:")
	for _, y := range summary.Yields {
		fmt.Fprintf(out, "%d\t%d\t%g\n", y.DatasetID, y.Events, y.Weighted)
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/expected"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/store"
)

// BaselineOptions holds flags shared by the baseline subcommands.
type BaselineOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// PromoteOptions holds flags for baseline promote.
type PromoteOptions struct {
	*BaselineOptions
	From   string
	To     string
	DryRun bool
}

// PromoteResult is the output of baseline promote.
type PromoteResult struct {
	Source  string            `json:"source"`
	Target  string            `json:"target"`
	DryRun  bool              `json:"dry_run"`
	Changes []expected.Change `json:"changes"`
}

// NewBaselineCommand creates the baseline command group.
func NewBaselineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BaselineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect and promote recorded values",
		Long: `Inspect recorded candidate values and promote them to expected values.

Recorded values live either in recorded.properties files below a record
directory (verify --record) or in a SQLite run log (verify --db).`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite run log")
	cmd.PersistentFlags().StringVar(&opts.RunID, "run", "", "run id (default: latest run)")

	cmd.AddCommand(newBaselineListCommand(opts))
	cmd.AddCommand(newBaselinePromoteCommand(opts))
	return cmd
}

func newBaselineListCommand(opts *BaselineOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, or the values of one run",
		Long: `Without --run, list every run in the log, oldest first. With --run, list
the values recorded in that run.

Examples:
  galenium baseline list --db runs.db
  galenium baseline list --db runs.db --run 0192f0c4-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaselineList(cmd, opts)
		},
	}
}

func runBaselineList(cmd *cobra.Command, opts *BaselineOptions) error {
	st, err := openRunLog(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := commandContext(cmd)
	out := opts.formatter(cmd)

	if opts.RunID == "" {
		runs, err := st.Runs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return out.Success(runs, func(w io.Writer) {
			if len(runs) == 0 {
				fmt.Fprintln(w, "No recorded runs.")
				return
			}
			for _, r := range runs {
				fmt.Fprintf(w, "%3d  %s  %-24s %d values\n", r.Ordinal, r.ID, r.Label, r.Values)
			}
		})
	}

	candidates, err := st.ListCandidates(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list values", err)
	}
	return out.Success(candidates, func(w io.Writer) {
		for _, c := range candidates {
			fmt.Fprintf(w, "%s=%s\n", c.Key, c.Value)
		}
	})
}

func newBaselinePromoteCommand(parent *BaselineOptions) *cobra.Command {
	opts := &PromoteOptions{BaselineOptions: parent}

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Merge recorded values into an expected .properties file",
		Long: `Merge recorded values into an expected .properties file.

Values come from the recorded.properties files below --from, or from one run
of the --db run log (the latest unless --run is given). Only changed keys are
reported; --dry-run reports without writing.

Examples:
  galenium baseline promote --from expected/_recorded --to expected/baseline.properties
  galenium baseline promote --db runs.db --to expected/baseline.properties --dry-run`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaselinePromote(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "record directory to promote from")
	cmd.Flags().StringVar(&opts.To, "to", "", "expected .properties file to write")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report changes without writing")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runBaselinePromote(cmd *cobra.Command, opts *PromoteOptions) error {
	result := PromoteResult{Target: opts.To, DryRun: opts.DryRun}
	if opts.From != "" && opts.Database != "" {
		return NewExitError(ExitCommandError, "--from and --db are mutually exclusive")
	}

	switch {
	case opts.From != "":
		changes, err := expected.Promote(opts.From, opts.To, opts.DryRun)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to promote", err)
		}
		result.Source = opts.From
		result.Changes = changes

	case opts.Database != "":
		st, err := openRunLog(opts.Database)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx := commandContext(cmd)
		runID := opts.RunID
		if runID == "" {
			latest, err := st.LatestRun(ctx)
			if errors.Is(err, store.ErrNoRuns) {
				return NewExitError(ExitCommandError, "run log has no recorded runs")
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to find latest run", err)
			}
			runID = latest.ID
		}
		values, err := st.LatestValues(ctx, runID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		changes, err := expected.PromoteValues(values, opts.To, opts.DryRun)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to promote", err)
		}
		result.Source = "run " + runID
		result.Changes = changes

	default:
		return NewExitError(ExitCommandError, "one of --from or --db is required")
	}

	if result.Changes == nil {
		result.Changes = []expected.Change{}
	}
	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		verb := "promoted"
		if result.DryRun {
			verb = "would promote"
		}
		for _, c := range result.Changes {
			if c.Added {
				fmt.Fprintf(w, "+ %s=%s\n", c.Key, c.New)
			} else {
				fmt.Fprintf(w, "~ %s=%s (was %s)\n", c.Key, c.New, c.Old)
			}
		}
		fmt.Fprintf(w, "%s %d changes from %s to %s\n", verb, len(result.Changes), result.Source, result.Target)
	})
}

func openRunLog(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "--db is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

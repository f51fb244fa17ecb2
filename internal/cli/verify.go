package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/device"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/expected"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/harness"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/metrics"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/source"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/store"
	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/verification"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions

	Fixture string
	URL     string
	Remote  string
	Headful bool

	Catalog string
	Devices []string

	Expected   string
	Record     bool
	RecordMode string
	Database   string
	Label      string

	Parallel    int
	Timeout     time.Duration
	MetricsFile string

	// RunIDs overrides the run id generator (for testing).
	RunIDs store.RunIDGenerator
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <scenario.yaml>",
		Short: "Run a verification scenario",
		Long: `Run every check of a scenario on each selected device.

Values come from a YAML fixture (--fixture) or a live page (--url). Expected
values are read from the properties files below --expected. With --record,
actual values are written as candidates below the record directory. With
--db, they are appended to a SQLite run log, one run per invocation.

Exit codes:
  0 - every check ended as declared
  1 - at least one check did not
  2 - command error (unreadable scenario, no source, etc.)

Examples:
  galenium verify page.yaml --fixture values.yaml --expected ./expected
  galenium verify page.yaml --url https://example.com --catalog devices.cue --devices desktop,phone
  galenium verify page.yaml --fixture values.yaml --expected ./expected --record --db runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "YAML fixture of selector values")
	cmd.Flags().StringVar(&opts.URL, "url", "", "page URL to open in a browser")
	cmd.Flags().StringVar(&opts.Remote, "remote", "", "DevTools URL of a running browser (default: launch one)")
	cmd.Flags().BoolVar(&opts.Headful, "headful", false, "show the launched browser")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE device catalog")
	cmd.Flags().StringSliceVar(&opts.Devices, "devices", nil, "devices to run (default: scenario devices, then whole catalog)")
	cmd.Flags().StringVar(&opts.Expected, "expected", "", "directory of expected .properties files")
	cmd.Flags().BoolVar(&opts.Record, "record", false, "record actual values below the expected directory")
	cmd.Flags().StringVar(&opts.RecordMode, "record-mode", "always", "which cycles to record (always|pass|never)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite run log for recorded values")
	cmd.Flags().StringVar(&opts.Label, "label", "", "run label in the run log (default: scenario name)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "maximum concurrent devices (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "overall time limit (0 = none)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	cmd.MarkFlagsMutuallyExclusive("fixture", "url")

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions, scenarioPath string) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	out := opts.formatter(cmd)

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	mode, err := verification.ParseRecordMode(opts.RecordMode)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --record-mode", err)
	}
	if opts.Record && opts.Expected == "" {
		return NewExitError(ExitCommandError, "--record needs --expected")
	}

	devices, err := selectDevices(scenario, opts.Catalog, opts.Devices)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	runner := &harness.Runner{
		Expected:    expected.Map{},
		RecordMode:  mode,
		Parallelism: opts.Parallel,
		Logger:      logger,
	}

	if opts.Expected != "" {
		dir, err := expected.Open(opts.Expected, expected.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open expected values", err)
		}
		runner.Expected = dir
		if opts.Record {
			runner.Recorder = dir
		}
		out.VerboseLog("loaded %d expected values from %s", dir.Len(), dir.Root())
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("error closing database", "error", err)
			}
		}()
		runner.DeviceRecorder = runLogRecorder(st, opts, scenario.Name, runner.Recorder)
	}

	var reg *prometheus.Registry
	if opts.MetricsFile != "" {
		reg = prometheus.NewRegistry()
		runner.Metrics = metrics.New(reg)
	}

	sources, closeSources, err := openSources(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer closeSources()
	runner.Sources = sources

	results, err := runner.RunDevices(ctx, scenario, devices)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario run aborted", err)
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, reg); err != nil {
			return WrapExitError(ExitCommandError, "failed to write metrics", err)
		}
	}

	if err := out.Success(results, func(w io.Writer) { printResults(w, results) }); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.Pass {
			failed++
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d device runs failed", failed, len(results)))
	}
	return nil
}

// runLogRecorder records into the SQLite run log, stamped per device, in
// addition to fileRecorder when set.
func runLogRecorder(st *store.Store, opts *VerifyOptions, scenario string, fileRecorder expected.Recorder) func(device.Device) expected.Recorder {
	ids := opts.RunIDs
	if ids == nil {
		ids = store.UUIDv7Generator{}
	}
	label := opts.Label
	if label == "" {
		label = scenario
	}
	base := st.NewRecorder(ids.Generate(), label, "", store.NewClock())
	return func(d device.Device) expected.Recorder {
		return expected.Recorders(fileRecorder, base.WithDevice(d.Name()))
	}
}

// openSources builds the per-device source factory from --fixture or --url.
func openSources(ctx context.Context, opts *VerifyOptions, logger *slog.Logger) (harness.SourceFactory, func(), error) {
	switch {
	case opts.Fixture != "":
		m, err := source.LoadFixture(opts.Fixture)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to load fixture", err)
		}
		return func(context.Context, device.Device) (source.Source, error) { return m, nil }, func() {}, nil

	case opts.URL != "":
		b, err := source.OpenBrowser(ctx, source.BrowserConfig{
			RemoteURL: opts.Remote,
			Headful:   opts.Headful,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open browser", err)
		}
		factory := func(ctx context.Context, d device.Device) (source.Source, error) {
			return b.Open(ctx, opts.URL, d)
		}
		closeFn := func() {
			if err := b.Close(); err != nil {
				logger.Warn("closing browser failed", "error", err)
			}
		}
		return factory, closeFn, nil
	}
	return nil, nil, NewExitError(ExitCommandError, "one of --fixture or --url is required")
}

// selectDevices loads the catalog, if any, and resolves the devices to run.
func selectDevices(s *harness.Scenario, catalogPath string, names []string) ([]device.Device, error) {
	var cat *device.Catalog
	if catalogPath != "" {
		var err error
		if cat, err = device.LoadCatalog(catalogPath); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load device catalog", err)
		}
	}
	devices, err := harness.ResolveDevices(s, cat, names)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to select devices", err)
	}
	return devices, nil
}

func printResults(w io.Writer, results []*harness.Result) {
	for _, r := range results {
		status := "PASS"
		if !r.Pass {
			status = "FAIL"
		}
		target := r.Device
		if target == "" {
			target = "default device"
		}
		fmt.Fprintf(w, "%s on %s: %s (%d/%d checks passed)\n", r.Scenario, target, status, r.Passed(), len(r.Checks))
		for _, c := range r.Checks {
			mark := "ok  "
			if !c.AsDeclared() {
				mark = "FAIL"
			}
			fmt.Fprintf(w, "  %s %-20s %s\n", mark, c.Name, c.Message)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  error: %s\n", e)
		}
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

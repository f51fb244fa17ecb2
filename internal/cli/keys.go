package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/harness"
)

// KeysOptions holds flags for the keys command.
type KeysOptions struct {
	*RootOptions
	Catalog string
	Devices []string
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeysOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keys <scenario.yaml>",
		Short: "Show the expected-value keys of a scenario",
		Long: `Derive the property key and record path of every check without sampling.

Use it to find which line of an expected .properties file a check reads.

Examples:
  galenium keys page.yaml
  galenium keys page.yaml --catalog devices.cue --devices phone --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeys(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE device catalog")
	cmd.Flags().StringSliceVar(&opts.Devices, "devices", nil, "devices to derive keys for")

	return cmd
}

func runKeys(cmd *cobra.Command, opts *KeysOptions, scenarioPath string) error {
	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	devices, err := selectDevices(scenario, opts.Catalog, opts.Devices)
	if err != nil {
		return err
	}

	all := []harness.KeyInfo{}
	for _, d := range devices {
		keys, err := harness.Keys(scenario, d)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to derive keys", err)
		}
		all = append(all, keys...)
	}

	return opts.formatter(cmd).Success(all, func(w io.Writer) {
		for _, k := range all {
			fmt.Fprintf(w, "%s\t%s\n", k.Key, k.Path)
		}
	})
}

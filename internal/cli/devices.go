package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wcm-io-qa/wcm-io-qa-galenium-sub004/internal/device"
)

// DevicesOptions holds flags for the devices command.
type DevicesOptions struct {
	*RootOptions
	Tag string
}

// DeviceInfo is the output form of a catalog device.
type DeviceInfo struct {
	Name    string   `json:"name"`
	Browser string   `json:"browser"`
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Tags    []string `json:"tags"`
}

// NewDevicesCommand creates the devices command.
func NewDevicesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DevicesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "devices <catalog.cue>",
		Short: "Validate and list a device catalog",
		Long: `Validate a CUE device catalog and list its devices in declaration order.

Examples:
  galenium devices devices.cue
  galenium devices devices.cue --tag mobile`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevices(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Tag, "tag", "", "only list devices with this tag")

	return cmd
}

func runDevices(cmd *cobra.Command, opts *DevicesOptions, path string) error {
	cat, err := device.LoadCatalog(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load device catalog", err)
	}

	devices := cat.All()
	if opts.Tag != "" {
		devices = cat.Tagged(opts.Tag)
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		vp := d.Viewport()
		infos = append(infos, DeviceInfo{
			Name:    d.Name(),
			Browser: string(d.Browser()),
			Width:   vp.Width,
			Height:  vp.Height,
			Tags:    d.Tags(),
		})
	}

	return opts.formatter(cmd).Success(infos, func(w io.Writer) {
		for _, d := range infos {
			fmt.Fprintf(w, "%-16s %-8s %dx%d", d.Name, d.Browser, d.Width, d.Height)
			if len(d.Tags) > 0 {
				fmt.Fprintf(w, "  [%s]", strings.Join(d.Tags, ", "))
			}
			fmt.Fprintln(w)
		}
	})
}

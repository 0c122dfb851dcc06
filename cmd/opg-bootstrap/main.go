// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// opg-bootstrap prepares a freshly launched instance on its first boot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/einyx/opg-bootstrap/internal/app/bootstrap"
	"github.com/einyx/opg-bootstrap/internal/app/bootstrap/runtime"
	"github.com/einyx/opg-bootstrap/pkg/version"
)

var rootCmdArgs struct {
	markerPath string
	dryRun     bool
	timeout    time.Duration
}

var rootCmd = &cobra.Command{
	Use:           "opg-bootstrap",
	Short:         "First-boot node preparation",
	Long:          `Prepares a freshly launched instance: network identity, instance storage, container runtime storage and the configuration agent, then triggers the first convergence run.`,
	Version:       version.Tag,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if rootCmdArgs.timeout > 0 {
			var cancel context.CancelFunc

			ctx, cancel = context.WithTimeout(ctx, rootCmdArgs.timeout)
			defer cancel()
		}

		paths := runtime.DefaultPaths()
		if rootCmdArgs.markerPath != "" {
			paths.Marker = rootCmdArgs.markerPath
			paths.Claim = rootCmdArgs.markerPath + ".claim"
		}

		return bootstrap.Run(ctx, bootstrap.Options{
			DryRun: rootCmdArgs.dryRun,
			Paths:  &paths,
		})
	},
}

func init() {
	rootCmd.Flags().StringVar(&rootCmdArgs.markerPath, "marker-path", "", "override the completion marker location")
	rootCmd.Flags().BoolVar(&rootCmdArgs.dryRun, "dry-run", false, "log the storage provisioning plan without touching devices")
	rootCmd.Flags().DurationVar(&rootCmdArgs.timeout, "timeout", 0, "abort the run after this duration (0 means no limit)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

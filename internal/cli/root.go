package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vk/omnibuild/internal/app"
	"github.com/vk/omnibuild/internal/config"
	"github.com/vk/omnibuild/internal/orchestrator"
	"github.com/vk/omnibuild/internal/scheduler"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// rootOptions holds flags that are not configuration keys.
type rootOptions struct {
	configFile string
	outW       io.Writer
	errW       io.Writer
	appOpts    []app.Option
}

// NewRootCmd builds the omnibuild command tree. Reports go to outW, logs
// and errors to errW.
func NewRootCmd(outW, errW io.Writer, appOpts ...app.Option) *cobra.Command {
	opts := &rootOptions{outW: outW, errW: errW, appOpts: appOpts}

	root := &cobra.Command{
		Use:   "omnibuild",
		Short: "Build interdependent software components in dependency order",
		Long: `omnibuild reads software descriptors, fetches and verifies each source
artifact, and builds every component after its dependencies.

Independent components build in parallel. A failed component skips only
the components that depend on it, and successful builds are cached so a
second run rebuilds nothing.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(errW)

	d := config.Default()
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "path to config file (env: OMNIBUILD_CONFIG)")
	flags.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	flags.String("log-format", d.LogFormat, "log format: text or json")
	flags.String("work-dir", d.WorkDir, "directory for extracted sources")
	flags.String("install-dir", d.InstallDir, "directory for build outputs")
	flags.StringSlice("override", nil, "version override as name=version (repeatable)")

	root.AddCommand(newBuildCmd(opts), newPlanCmd(opts), newVersionCmd())
	return root
}

// loadConfig resolves configuration for a command. Positional arguments
// replace the configured descriptor paths.
func (o *rootOptions) loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	configFile := o.configFile
	if configFile == "" {
		configFile = os.Getenv(config.EnvPrefix + "_CONFIG")
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, usageError("%v", err)
	}
	if len(args) > 0 {
		cfg.Paths = args
	}
	if len(cfg.Paths) == 0 {
		return nil, usageError("no descriptor paths given; pass PATH arguments or set paths in the config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageError("invalid configuration:\n%v", err)
	}
	return cfg, nil
}

func newBuildCmd(o *rootOptions) *cobra.Command {
	d := config.Default()
	cmd := &cobra.Command{
		Use:   "build [PATH...]",
		Short: "Fetch, verify and build every component",
		Long: `Build every component declared in the descriptor files under PATH.

Exit status is 0 when every component succeeds, 1 when any component
failed, was skipped or was cancelled, 2 for usage or configuration errors
and 3 for fatal errors found before any build started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd, args)
			if err != nil {
				return err
			}

			a := app.NewApp(o.outW, o.errW, cfg, o.appOpts...)
			report, err := a.Run(cmd.Context())
			if err != nil {
				return asExitError(err)
			}
			if !report.Succeeded() {
				return &ExitError{Code: ExitBuildFailed, Message: failureMessage(report)}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntP("workers", "j", d.Workers, "number of concurrent builds")
	flags.StringP("output", "o", d.ReportFormat, "report format: text, json or yaml")
	flags.Int("status-port", 0, "port for the HTTP status server, 0 disables it")
	flags.Int("fetch-attempts", d.Fetch.Attempts, "download attempts per source")
	flags.Duration("initial-backoff", d.Fetch.InitialBackoff, "delay before the first download retry")
	flags.String("cache", d.Cache.Backend, "cache backend: none, memory, file, s3 or postgres")
	flags.String("cache-dir", d.Cache.Dir, "directory for the file cache")
	flags.String("cache-bucket", "", "bucket for the s3 cache")
	flags.String("database-url", "", "connection URL for the postgres cache")
	flags.String("s3-endpoint", "", "S3-compatible endpoint for s3:// sources and the s3 cache")
	flags.String("socketio-url", "", "Socket.IO server that receives status events")
	return cmd
}

func newPlanCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [PATH...]",
		Short: "Validate descriptors and print the build order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig(cmd, args)
			if err != nil {
				return err
			}
			_, err = app.NewApp(o.outW, o.errW, cfg, o.appOpts...).Plan(cmd.Context())
			return asExitError(err)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "omnibuild %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

func failureMessage(r *orchestrator.Report) string {
	failed := 0
	for _, res := range r.Results {
		if res.Status != scheduler.Success {
			failed++
		}
	}
	return fmt.Sprintf("build failed: %d of %d components did not succeed", failed, len(r.Results))
}

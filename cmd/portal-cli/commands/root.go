package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"portalproxy-backend/internal/components/chrono"
	"portalproxy-backend/internal/components/telemetry"
	"portalproxy-backend/internal/scrapers/portal"
	"portalproxy-backend/internal/service"
	"portalproxy-backend/lib/configutil"
	configlibsql "portalproxy-backend/lib/configutil/libsql"
	"portalproxy-backend/lib/restyutil"
	"portalproxy-backend/lib/serviceutil"
	libtelemetry "portalproxy-backend/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Portal      portal.Config      `json:"portal"`
	Auth        service.AuthConfig `json:"auth"`
	Diagnostics struct {
		Database configlibsql.Struct `json:"database"`
	} `json:"diagnostics"`
}

var (
	verbose bool
	dumpDir string
	otel    libtelemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "portal-cli",
	Short: "portal-cli is a CLI for probing student portals and debugging grade parsing.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		libtelemetry.InitSlog(verbose)
		var err error
		otel, err = libtelemetry.SetupFromEnv(cmd.Context(), "portal-cli")
		if err != nil {
			serviceutil.Fatal("setup telemetry", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		otel.Shutdown(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logs.")
	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-dir", "", "Write every (redacted) portal exchange to this directory.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

// readConfig reads config.json5 when present, the portal defaults apply otherwise.
func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if os.IsNotExist(err) {
		return Config{}
	}
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	return cfg
}

func newPortal() *portal.Portal {
	cfg := readConfig()

	overrides := portal.DefaultOverrides()
	if cfg.Portal.OverridesFile != "" {
		var err error
		overrides, err = portal.LoadOverrides(cfg.Portal.OverridesFile)
		if err != nil {
			serviceutil.Fatal("load overrides", err)
		}
	}

	p := portal.New(cfg.Portal, overrides, telemetry.SlogAPI{}, chrono.NewStandardImpl(time.Local))
	if dumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(dumpDir)
		if err != nil {
			serviceutil.Fatal("create dump dir", err)
		}
		p.SetDumpOutput(output)
	}
	return p
}

func descriptorFromArgs(args []string) portal.InstitutionDescriptor {
	d := portal.InstitutionDescriptor{Code: args[0]}
	if len(args) > 1 {
		d.Region = args[1]
	}
	return d
}

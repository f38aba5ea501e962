package main

import (
	"context"
	"flag"
	"log/slog"
	"time"

	"portalproxy-backend/internal/components/chrono"
	"portalproxy-backend/internal/components/telemetry"
	"portalproxy-backend/internal/diagnostics"
	"portalproxy-backend/internal/scrapers/portal"
	"portalproxy-backend/internal/service"
	"portalproxy-backend/lib/configutil"
	"portalproxy-backend/lib/restyutil"
	"portalproxy-backend/lib/serviceutil"
	libtelemetry "portalproxy-backend/lib/telemetry"
)

func initRecorder(config DiagnosticsConfig, tel telemetry.API, clock chrono.API) (diagnostics.Recorder, error) {
	db, err := config.Database.OpenDB(diagnostics.Schema)
	if err != nil {
		return diagnostics.Recorder{}, err
	}

	var mailer diagnostics.Mailer
	if config.Smtp.Enabled() {
		mailer = diagnostics.NewSmtpMailer(config.Smtp)
	}
	return diagnostics.NewRecorder(diagnostics.NewStore(db), mailer, tel, clock), nil
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	dumpDir := flag.String("dump-dir", "", "Write every (redacted) portal request and response to this directory.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	libtelemetry.InitSlog(*verbose)
	otel, err := libtelemetry.SetupFromEnv(ctx, "portalproxy")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otel.Shutdown(shutdownCtx)
		if err != nil {
			slog.Warn("failed to shutdown telemetry", "err", err)
		}
	}()
	go libtelemetry.InstrumentPerfStats(ctx)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	location := time.UTC
	if cfg.Timezone != "" {
		location, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			serviceutil.Fatal("load timezone", err)
		}
	}
	clock := chrono.NewStandardImpl(location)
	tel := telemetry.SlogAPI{}

	overrides := portal.DefaultOverrides()
	if cfg.Portal.OverridesFile != "" {
		overrides, err = portal.LoadOverrides(cfg.Portal.OverridesFile)
		if err != nil {
			serviceutil.Fatal("load overrides", err)
		}
	}
	portalClient := portal.New(cfg.Portal, overrides, tel, clock)
	if *dumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(*dumpDir)
		if err != nil {
			serviceutil.Fatal("create dump dir", err)
		}
		portalClient.SetDumpOutput(output)
	}

	verifier, err := service.NewVerifier(cfg.Auth, clock)
	if err != nil {
		serviceutil.Fatal("init auth", err)
	}

	var recorder service.RecorderAPI
	if cfg.Diagnostics.Database.Enabled() {
		diagnosticsRecorder, err := initRecorder(cfg.Diagnostics, tel, clock)
		if err != nil {
			serviceutil.Fatal("init diagnostics", err)
		}
		// pending alerts are sent before exiting
		defer diagnosticsRecorder.Wait()
		recorder = diagnosticsRecorder
	} else {
		slog.Warn("no diagnostics database configured, parse attempts will not be recorded")
	}

	svc := service.NewService(portalClient, verifier, recorder, tel)
	serviceutil.StartHttpServer(ctx, cfg.Port, svc.Handler(service.HTTPOptions{
		AllowedOrigins: cfg.CorsOrigins,
	}))
}

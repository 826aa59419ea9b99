package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iwvelando/deployment-planner/internal/config"
	"github.com/iwvelando/deployment-planner/internal/cost"
	"github.com/iwvelando/deployment-planner/internal/jurisdiction"
	"github.com/iwvelando/deployment-planner/internal/planner"
	"github.com/iwvelando/deployment-planner/internal/rates"
	"github.com/iwvelando/deployment-planner/internal/scoring"
	"github.com/iwvelando/deployment-planner/internal/server"
	"github.com/iwvelando/deployment-planner/internal/socialsecurity"
	"github.com/iwvelando/deployment-planner/pkg/constants"
	"github.com/iwvelando/deployment-planner/pkg/output"
	"github.com/iwvelando/deployment-planner/pkg/validation"
)

var version = "dev"

// App holds what every subcommand needs once the configuration is loaded.
type App struct {
	conf         *config.Configuration
	logger       *zap.Logger
	planner      *planner.Planner
	outputFormat string
	closers      []func() error
}

var (
	configLocation   string
	logLevelOverride string
	outputOverride   string
	app              *App
)

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var zapConfig zap.Config
	switch format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}

		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		zapConfig.OutputPaths = []string{loggingConfig.OutputFile}
		zapConfig.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zapConfig.Build()
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "deployment-planner",
		Short:         "Cost international assignments and staff projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app == nil {
				return
			}
			for _, closeFn := range app.closers {
				if err := closeFn(); err != nil {
					app.logger.Warn("failed to release resource", zap.String("op", "main"), zap.Error(err))
				}
			}
			_ = app.logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configLocation, "config", constants.DefaultConfigFile, "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&outputOverride, "output-format", "", "type of output override: pretty, csv")

	rootCmd.AddCommand(costCmd())
	rootCmd.AddCommand(staffCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"error\": %q}\n", err.Error())
		stop()
		os.Exit(1)
	}
}

// initApp loads .env and the configuration, then wires the planner.
func initApp(ctx context.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	conf, err := config.LoadConfiguration(configLocation)
	if err != nil {
		return fmt.Errorf("failed to load configuration at %s: %w", configLocation, err)
	}

	logger, err := initializeLogger(conf.Logging, logLevelOverride)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	outputFormat := conf.Output.Format
	if outputOverride != "" {
		outputFormat = outputOverride
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		return err
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning, zap.String("op", "main"))
	}

	app = &App{conf: conf, logger: logger, outputFormat: outputFormat}

	table := conf.Table()
	deps := planner.Dependencies{
		Table:     table,
		AdminFees: conf.AdminFees,
		Rates:     app.rateProvider(table),
		Visas:     conf.VisaProvider(),
		Flights:   conf.FlightTable(),
		Scoring:   conf.Scoring.Options(),
	}

	store, err := app.settingsStore(ctx)
	if err != nil {
		return err
	}
	deps.Settings = store

	app.planner, err = planner.New(logger, deps)
	if err != nil {
		return fmt.Errorf("failed to create planner: %w", err)
	}
	return nil
}

// rateProvider serves table rates directly, or through the Redis cache when one
// is configured. Configured overrides act as the upstream feed.
func (a *App) rateProvider(table *jurisdiction.Table) rates.Provider {
	published := rates.NewStaticProvider(table, a.conf.Rates.Overrides, time.Now().UTC())
	if a.conf.Rates.RedisAddress == "" {
		return published
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.conf.Rates.RedisAddress,
		Password: a.conf.Rates.RedisPassword,
		DB:       a.conf.Rates.RedisDB,
	})
	a.closers = append(a.closers, client.Close)
	a.logger.Info("using redis rate cache",
		zap.String("op", "main"),
		zap.String("address", a.conf.Rates.RedisAddress),
		zap.Duration("ttl", a.conf.Rates.TTL))

	fallback := rates.NewStaticProvider(table, nil, time.Time{})
	return rates.NewCachedProvider(client, published, fallback, a.conf.CacheConfig(), a.logger)
}

func (a *App) settingsStore(ctx context.Context) (socialsecurity.SettingsStore, error) {
	defaults := a.conf.SocialSecurityDefaults()
	if a.conf.Database.DSN == "" {
		return socialsecurity.NewMemoryStore(defaults), nil
	}

	db, err := socialsecurity.OpenPostgres(a.conf.Database.DSN, a.conf.Database.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	store := socialsecurity.NewSQLStore(db, defaults, a.logger)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	return store, nil
}

func costCmd() *cobra.Command {
	var (
		assignment      cost.Assignment
		userID          string
		displayCurrency string
	)

	cmd := &cobra.Command{
		Use:   "cost",
		Short: "Cost a single assignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := app.planner.CalculateCost(cmd.Context(), userID, assignment, planner.CostOptions{
				Options: cost.Options{DisplayCurrency: displayCurrency},
			})
			if err != nil {
				return err
			}

			switch app.outputFormat {
			case constants.OutputFormatPretty:
				output.PrettyCost(os.Stdout, report)
			case constants.OutputFormatCSV:
				output.CsvCost(os.Stdout, report)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&assignment.HomeCountry, "home", "", "home country code")
	cmd.Flags().StringVar(&assignment.HostCountry, "host", "", "host country code")
	cmd.Flags().Float64Var(&assignment.MonthlySalary, "salary", 0, "monthly gross salary in EUR")
	cmd.Flags().IntVar(&assignment.DurationMonths, "months", constants.MinimumDurationMonths, "assignment length in months")
	cmd.Flags().IntVar(&assignment.WorkingDaysPerMonth, "working-days", constants.DefaultWorkingDaysPerMonth, "working days per month")
	cmd.Flags().Float64Var(&assignment.DailyAllowance, "allowance", 0, "daily allowance in EUR, 0 uses the host default")
	cmd.Flags().StringVar(&userID, "user", "", "user whose social security settings apply")
	cmd.Flags().StringVar(&displayCurrency, "display-currency", "", "currency to display results in")
	_ = cmd.MarkFlagRequired("home")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

func staffCmd() *cobra.Command {
	var (
		demand scoring.Demand
		preset string
	)

	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Rank the configured candidates and select a team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateCountryCode(demand.Destination); err != nil {
				return fmt.Errorf("invalid destination: %w", err)
			}

			weights := app.conf.Scoring.ResolveWeights()
			if preset != "" {
				name := config.CanonicalPreset(preset)
				if err := validation.ValidatePreset(name); err != nil {
					return err
				}
				weights, _ = scoring.Preset(name)
			}

			staffing, err := app.planner.Optimize(cmd.Context(), demand, app.conf.Candidates, weights)
			if err != nil {
				return err
			}

			snapshot := staffing.Selector.Snapshot()
			switch app.outputFormat {
			case constants.OutputFormatPretty:
				output.PrettyStaffing(os.Stdout, staffing.Run, snapshot)
			case constants.OutputFormatCSV:
				output.CsvStaffing(os.Stdout, snapshot)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&demand.Destination, "destination", "", "destination country code")
	cmd.Flags().StringVar(&demand.Role, "role", "", "role to staff")
	cmd.Flags().IntVar(&demand.DurationMonths, "months", constants.MinimumDurationMonths, "assignment length in months")
	cmd.Flags().IntVar(&demand.Positions, "positions", 1, "number of positions to fill")
	cmd.Flags().StringSliceVar(&demand.RequiredSkills, "skills", nil, "required skills")
	cmd.Flags().StringVar(&preset, "preset", "", "scoring preset overriding the configured weights")
	_ = cmd.MarkFlagRequired("destination")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func serveCmd() *cobra.Command {
	var serverConfigLocation string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sconf, err := server.LoadConfig(serverConfigLocation)
			if err != nil {
				return err
			}

			logger := app.logger
			if sconf.Logging != (config.LoggingConfig{}) {
				logger, err = initializeLogger(sconf.Logging, logLevelOverride)
				if err != nil {
					return fmt.Errorf("failed to initialize server logger: %w", err)
				}
				defer func() {
					_ = logger.Sync()
				}()
			}

			handler := server.NewHandler(logger, app.planner, server.Options{
				MaxUploadSize: sconf.UploadSizeBytes(),
				MaxSessions:   sconf.MaxSessions,
				Version:       version,
				Candidates:    app.conf.Candidates,
				Weights:       app.conf.Scoring.ResolveWeights(),
			})
			srv := &http.Server{
				Addr:              sconf.Address,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server",
					zap.String("op", "main"),
					zap.String("address", sconf.Address),
					zap.Int64("maxUploadSize", sconf.UploadSizeBytes()))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server failed: %w", err)
			case <-cmd.Context().Done():
			}

			logger.Info("shutting down server",
				zap.String("op", "main"),
				zap.Duration("timeout", sconf.ShutdownTimeoutDuration()))
			shutdownCtx, cancel := context.WithTimeout(context.Background(), sconf.ShutdownTimeoutDuration())
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverConfigLocation, "server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hakuto-dental/clinic-server/internal/config"
	"github.com/hakuto-dental/clinic-server/internal/domain/appointment"
	"github.com/hakuto-dental/clinic-server/internal/domain/auditevent"
	"github.com/hakuto-dental/clinic-server/internal/domain/billing"
	"github.com/hakuto-dental/clinic-server/internal/domain/chart"
	"github.com/hakuto-dental/clinic-server/internal/domain/patient"
	"github.com/hakuto-dental/clinic-server/internal/domain/portal"
	"github.com/hakuto-dental/clinic-server/internal/domain/procedure"
	"github.com/hakuto-dental/clinic-server/internal/domain/receiptcheck"
	"github.com/hakuto-dental/clinic-server/internal/domain/transcribe"
	"github.com/hakuto-dental/clinic-server/internal/platform/ai"
	"github.com/hakuto-dental/clinic-server/internal/platform/auth"
	"github.com/hakuto-dental/clinic-server/internal/platform/db"
	"github.com/hakuto-dental/clinic-server/internal/platform/middleware"
	"github.com/hakuto-dental/clinic-server/internal/platform/receipt"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Dental clinic management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(receiptCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, cfg.MigrationsDir).Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, cfg.MigrationsDir).Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func receiptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Receipt tooling",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a claim month's billing records",
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetString("month")
			if month == "" {
				month = time.Now().Format("2006-01")
			}

			_, pool, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			billingSvc := billing.NewService(billing.NewRepo(pool))
			chartSvc := chart.NewService(chart.NewRepo(pool))
			patientSvc := patient.NewService(patient.NewRepo(pool))
			procSvc := procedure.NewService(procedure.NewRepo(pool))
			checkSvc := receiptcheck.NewService(receiptcheck.NewRepo(pool), billingSvc, chartSvc, patientSvc, procSvc)

			verdicts, err := checkSvc.CheckMonth(cmd.Context(), month)
			if err != nil {
				return err
			}

			errs, warns := 0, 0
			for _, v := range verdicts {
				switch v.Status {
				case "error":
					errs++
				case "warn":
					warns++
				}
				for _, msg := range v.Errors {
					fmt.Printf("ERROR  %s %s: %s\n", v.VisitDate.Format("2006-01-02"), v.BillingID, msg)
				}
				for _, msg := range v.Warnings {
					fmt.Printf("WARN   %s %s: %s\n", v.VisitDate.Format("2006-01-02"), v.BillingID, msg)
				}
			}
			fmt.Printf("%s: %d record(s) checked, %d error, %d warn\n", month, len(verdicts), errs, warns)
			return nil
		},
	}
	checkCmd.Flags().String("month", "", "Claim month (YYYY-MM, defaults to current)")
	cmd.AddCommand(checkCmd)

	parseCmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a UKE receipt file and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			file, err := receipt.Decode(f)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(file)
		},
	}
	cmd.AddCommand(parseCmd)

	return cmd
}

func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	aiClient := ai.NewClient(cfg.OpenAIAPIKey,
		ai.WithBaseURL(cfg.OpenAIBaseURL),
		ai.WithModels(cfg.WhisperModel, cfg.ChatModel),
	)

	// Services
	patientSvc := patient.NewService(patient.NewRepo(pool))
	apptSvc := appointment.NewService(appointment.NewRepo(pool))
	portalSvc := portal.NewService(portal.NewRepo(pool))
	chartSvc := chart.NewService(chart.NewRepo(pool))
	procSvc := procedure.NewService(procedure.NewRepo(pool))
	billingSvc := billing.NewService(billing.NewRepo(pool))
	checkSvc := receiptcheck.NewService(receiptcheck.NewRepo(pool), billingSvc, chartSvc, patientSvc, procSvc)
	transcribeSvc := transcribe.NewService(transcribe.NewRepo(pool), aiClient, chartSvc)
	auditSvc := auditevent.NewService(auditevent.NewRepo(pool), logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("25M")) // audio uploads
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			Secret:   []byte(cfg.AuthHMACSecret),
		}))
	}

	e.Use(middleware.Audit(logger, auditSvc))
	e.Use(middleware.Timeout(30 * time.Second))

	e.GET("/health", func(c echo.Context) error {
		status := db.CheckHealth(c.Request().Context(), pool)
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]interface{}{
			"version":  version,
			"database": status,
		})
	})

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	portal.NewHandler(portalSvc).RegisterRoutes(apiV1)
	chart.NewHandler(chartSvc).RegisterRoutes(apiV1)
	procedure.NewHandler(procSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc).RegisterRoutes(apiV1)
	receiptcheck.NewHandler(checkSvc).RegisterRoutes(apiV1)
	transcribe.NewHandler(transcribeSvc).RegisterRoutes(apiV1)
	auditevent.NewHandler(auditSvc).RegisterRoutes(apiV1)

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}

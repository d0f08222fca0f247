package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinicore/clinicore/internal/config"
	"github.com/clinicore/clinicore/internal/domain/staff"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/middleware"
	"github.com/clinicore/clinicore/internal/platform/rbac"
	"github.com/clinicore/clinicore/internal/platform/telemetry"
)

const version = "0.1.0"

// errPermissionCheckFailed drives the non-zero exit of `roles check` so CI can
// assert registry contents.
var errPermissionCheckFailed = errors.New("permission check failed")

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinicore-server",
		Short: "Clinicore practice management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rolesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Clinicore API server",
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

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			to, _ := cmd.Flags().GetInt("to")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)

			var count int
			if to > 0 {
				count, err = migrator.UpTo(ctx, to)
			} else {
				count, err = migrator.Up(ctx)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	upCmd.Flags().Int("to", 0, "Apply migrations up to this version (0 = all)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
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
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	// migrate down - keep as warning
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Write a forward migration to undo the change, or restore from a backup.")
			return nil
		},
	})

	return cmd
}

func rolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Inspect the role and permission registry",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tenant roles in rank order",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%-15s %-6s %s\n", "ROLE", "RANK", "PERMISSIONS")
			fmt.Println("--------------- ------ -----------")
			for _, role := range rbac.TenantRoles() {
				fmt.Printf("%-15s %-6d %d\n", role, rbac.Rank(role), len(rbac.PermissionsFor(role)))
			}
			return nil
		},
	}
	cmd.AddCommand(listCmd)

	showCmd := &cobra.Command{
		Use:   "show ROLE",
		Short: "Show the permissions a role holds and the roles it can assign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := rbac.ParseRole(args[0])
			if !ok {
				return fmt.Errorf("unknown role: %s", args[0])
			}

			perms := rbac.PermissionsFor(role)
			fmt.Printf("Role: %s (rank %d)\n", role, rbac.Rank(role))
			fmt.Printf("Permissions (%d):\n", len(perms))
			for _, p := range perms {
				fmt.Printf("  %s\n", p)
			}

			assignable := rbac.AssignableRoles(role)
			if len(assignable) > 0 {
				names := make([]string, len(assignable))
				for i, r := range assignable {
					names[i] = string(r)
				}
				fmt.Printf("Can assign: %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
	cmd.AddCommand(showCmd)

	checkCmd := &cobra.Command{
		Use:   "check ROLE PERMISSION",
		Short: "Check whether a role holds a permission",
		Long:  "Exits 0 when the role holds the permission and 1 when it does not, so CI scripts can assert on the registry.",
		Args:  cobra.ExactArgs(2),
		// A denial is a result, not a usage mistake.
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := rbac.ParseRole(args[0])
			if !ok {
				return fmt.Errorf("unknown role: %s", args[0])
			}
			perm, ok := rbac.ParsePermission(args[1])
			if !ok {
				return fmt.Errorf("unknown permission: %s", args[1])
			}

			if rbac.HasPermission(role, perm) {
				fmt.Printf("granted: %s has %s\n", role, perm)
				return nil
			}
			fmt.Printf("denied: %s does not have %s\n", role, perm)
			return errPermissionCheckFailed
		},
	}
	cmd.AddCommand(checkCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Telemetry
	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "clinicore-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
	})

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	allowHeaders := []string{"Authorization", "Content-Type", "X-Request-ID"}
	if cfg.IsDev() {
		allowHeaders = append(allowHeaders, "X-Dev-User", "X-Dev-Role", "X-Dev-Tenant")
	}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: allowHeaders,
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.MaxBodySize))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeout) * time.Second))
	e.Use(middleware.SanitizeWithLogger(logger))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth mode: identity comes from X-Dev-* headers")
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Audit middleware feeds authorization decisions into the metrics.
	e.Use(middleware.Audit(logger, middleware.AuditRecorderFunc(func(entry middleware.AuditEntry) error {
		tp.RecordAccessDecision(entry.Resource, entry.Decision)
		return nil
	})))
	e.Use(tp.MetricsMiddleware())

	// API group
	apiV1 := e.Group("/api/v1")

	// Rate limiting middleware
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		apiV1.Use(middleware.RedisRateLimit(rdb, rateLimitCfg, logger))
		logger.Info().Msg("rate limiting backed by redis")
	} else {
		apiV1.Use(middleware.RateLimit(rateLimitCfg))
	}

	// Read endpoints opt into ETag revalidation so the front end can poll
	// the directory cheaply.
	apiV1.Use(middleware.ETag())

	// Staff directory
	staffRepo := staff.NewRepo(pool)
	staffHandler := staff.NewHandler(staff.NewService(staffRepo))
	staffHandler.RegisterRoutes(apiV1)

	// Permission introspection for the frontend permission gate
	auth.NewIntrospectionHandler().RegisterRoutes(apiV1)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	// DB health check endpoint
	e.GET("/health/db", db.HealthHandler(pool))

	// Prometheus metrics
	e.GET("/metrics", tp.PrometheusHandler())

	// Keep the DB pool gauges current while the server runs.
	go func() {
		hm := tp.HealthMetrics()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stat := pool.Stat()
			hm.SetDBPoolActive(int64(stat.AcquiredConns()))
			hm.SetDBPoolIdle(int64(stat.IdleConns()))
		}
	}()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

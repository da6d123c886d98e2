package main

import (
	"context"
	crypto_rand "crypto/rand"
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

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/domain/identity"
	"github.com/hms/hms/internal/domain/lab"
	"github.com/hms/hms/internal/domain/patient"
	"github.com/hms/hms/internal/domain/report"
	"github.com/hms/hms/internal/domain/staff"
	"github.com/hms/hms/internal/domain/tpa"
	"github.com/hms/hms/internal/domain/ward"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/blobstore"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/events"
	"github.com/hms/hms/internal/platform/invoice"
	"github.com/hms/hms/internal/platform/metrics"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/store"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital administration API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Prepare the SQL record store",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()

			switch cfg.StoreBackend {
			case config.BackendMySQL:
				m, err := store.OpenMySQL(ctx, cfg.MySQLDSN)
				if err != nil {
					return err
				}
				defer m.Close()
				if err := m.EnsureSchema(ctx); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Println("MySQL schema is up to date.")
				return nil
			case config.BackendPostgres:
			default:
				return fmt.Errorf("STORE_BACKEND %q has no schema to migrate", cfg.StoreBackend)
			}

			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dirOr(dir, cfg.MigrationsDir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.BackendPostgres {
				return fmt.Errorf("migration status requires STORE_BACKEND=%s", config.BackendPostgres)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dirOr(dir, cfg.MigrationsDir)).Status(ctx)
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
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ConnectAttempts: 5,
	}
}

func dirOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <dump.json>",
		Short: "Import a browser local-storage dump into the record store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			dump, err := store.ParseDump(f)
			if err != nil {
				return err
			}
			res, err := store.Import(ctx, st, dump, importChecks())
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

// importChecks decodes every imported record through its domain type.
func importChecks() map[string]store.RecordCheck {
	return map[string]store.RecordCheck{
		store.KeyPatients:       store.DecodeAs[patient.Patient](),
		store.KeyAppointments:   store.DecodeAs[appointment.Appointment](),
		store.KeyBills:          store.DecodeAs[billing.Bill](),
		store.KeyWardRooms:      store.DecodeAs[ward.Room](),
		store.KeyAdmissions:     store.DecodeAs[ward.Admission](),
		store.KeyDoctors:        store.DecodeAs[staff.Doctor](),
		store.KeyStaff:          store.DecodeAs[staff.Member](),
		store.KeyTPAs:           store.DecodeAs[tpa.TPA](),
		store.KeyPolicies:       store.DecodeAs[tpa.Policy](),
		store.KeyClaims:         store.DecodeAs[tpa.Claim](),
		store.KeyTPABills:       store.DecodeAs[tpa.Bill](),
		store.KeyUsers:          store.DecodeAs[identity.User](),
		store.KeyLabAssignments: store.DecodeAs[lab.Assignment](),
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default ward rooms and the bootstrap admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := context.Background()
			st, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			key, _, err := resolveSigningKey(cfg.JWTSecret)
			if err != nil {
				return err
			}
			a := newApp(cfg, st, blobstore.NewMemory(), key, logger)
			return a.seed(ctx, true)
		},
	}
}

// openStore opens the record store selected by STORE_BACKEND. The pool is
// returned for the postgres backend only.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, *pgxpool.Pool, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return store.NewMemory(), nil, nil
	case config.BackendFile:
		f, err := store.OpenFile(cfg.StoreFile)
		if err != nil {
			return nil, nil, err
		}
		return f, nil, nil
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, poolConfig(cfg))
		if err != nil {
			return nil, nil, err
		}
		return store.NewPostgres(pool), pool, nil
	case config.BackendMySQL:
		m, err := store.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := m.EnsureSchema(ctx); err != nil {
			m.Close()
			return nil, nil, err
		}
		return m, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openBlobs(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.BlobBackend != "s3" {
		return blobstore.NewMemory(), nil
	}
	return blobstore.NewS3(ctx, blobstore.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretKey,
	})
}

// resolveSigningKey returns JWT_SECRET, or a random 32-byte key when it is
// unset. The second return value is true when a random key was generated.
func resolveSigningKey(secret string) ([]byte, bool, error) {
	if secret != "" {
		return []byte(secret), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

// app holds the wired services.
type app struct {
	cfg     *config.Config
	store   store.Store
	jwt     auth.JWTConfig
	metrics *metrics.Metrics
	hub     *events.Hub
	logger  zerolog.Logger

	billing     *billing.Service
	ward        *ward.Service
	lab         *lab.Service
	tpa         *tpa.Service
	patient     *patient.Service
	staff       *staff.Service
	appointment *appointment.Service
	identity    *identity.Service
	report      *report.Service
}

func newApp(cfg *config.Config, st store.Store, blobs blobstore.Store, signingKey []byte, logger zerolog.Logger) *app {
	m := metrics.New()
	observed := store.Observe(st, func(key string) {
		m.StoreConflict()
		logger.Warn().Str("key", key).Msg("record version conflict")
	})
	hub := events.NewHub(logger)
	jwtCfg := auth.JWTConfig{SigningKey: signingKey, TTL: cfg.JWTTTL()}

	a := &app{cfg: cfg, store: observed, jwt: jwtCfg, metrics: m, hub: hub, logger: logger}

	a.billing = billing.NewService(billing.NewBillRepoStore(observed), logger)
	a.billing.SetPublisher(hub)
	a.billing.SetMetrics(m)
	var renderer invoice.Renderer = invoice.HTML{}
	if cfg.PDFEnabled {
		renderer = invoice.PDF{}
	}
	a.billing.SetInvoicing(renderer, blobs, cfg.HospitalName)

	a.ward = ward.NewService(ward.NewRoomRepoStore(observed), ward.NewAdmissionRepoStore(observed), observed, a.billing, logger)
	a.ward.SetPublisher(hub)
	a.ward.SetMetrics(m)

	a.lab = lab.NewService(lab.NewAssignmentRepoStore(observed), observed, a.billing, logger)
	a.lab.SetPublisher(hub)

	a.tpa = tpa.NewService(tpa.NewTPARepoStore(observed), tpa.NewPolicyRepoStore(observed),
		tpa.NewClaimRepoStore(observed), tpa.NewBillRepoStore(observed), observed, blobs, logger)
	a.tpa.SetPublisher(hub)
	a.tpa.SetMetrics(m)

	a.patient = patient.NewService(patient.NewPatientRepoStore(observed), logger)
	a.staff = staff.NewService(staff.NewDoctorRepoStore(observed), staff.NewMemberRepoStore(observed), logger)
	a.appointment = appointment.NewService(appointment.NewRepoStore(observed), observed, logger)
	a.appointment.SetDoctorDirectory(a.staff)

	a.identity = identity.NewService(identity.NewUserRepoStore(observed), identity.NewPasswordHasher(0), jwtCfg, logger)

	a.report = report.NewService(report.Sources{
		Bills:        a.billing,
		Patients:     a.patient,
		Appointments: a.appointment,
		Occupancy:    a.ward,
		Claims:       a.tpa,
	}, logger)
	return a
}

// seed creates the sample rooms when SEED_ROOMS is on (or force is set) and
// the bootstrap admin when ADMIN_PASSWORD is set.
func (a *app) seed(ctx context.Context, force bool) error {
	if a.cfg.SeedRooms || force {
		seeded, err := a.ward.SeedDefaultRooms(ctx)
		if err != nil {
			return fmt.Errorf("seed rooms: %w", err)
		}
		if seeded {
			a.logger.Info().Msg("seeded default ward rooms")
		}
	}
	if a.cfg.AdminPassword == "" {
		return nil
	}
	created, err := a.identity.EnsureAdmin(ctx, a.cfg.AdminEmail, a.cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		a.logger.Info().Str("email", a.cfg.AdminEmail).Msg("created bootstrap admin")
	}
	return nil
}

// newServer builds the echo instance with every route registered. pool is
// only used for readiness statistics and may be nil.
func newServer(a *app, pool *pgxpool.Pool) *echo.Echo {
	cfg := a.cfg
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.Metrics(a.metrics))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "12M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/ready", db.ReadyHandler(cfg.StoreBackend, a.store, pool))
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg), middleware.RequestTimeout(30*time.Second))

	identityHandler := identity.NewHandler(a.identity)
	identityHandler.RegisterPublicRoutes(api)

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		authMW = auth.DevAuthMiddleware(a.jwt)
	} else {
		authMW = auth.JWTMiddleware(a.jwt)
	}
	secured := api.Group("", authMW)

	events.NewHandler(a.hub, cfg.CORSOrigins, topicGate).RegisterRoutes(e, auth.QueryTokenMiddleware(), authMW)

	identityHandler.RegisterRoutes(secured)
	patient.NewHandler(a.patient).RegisterRoutes(secured)
	staff.NewHandler(a.staff).RegisterRoutes(secured)
	appointment.NewHandler(a.appointment).RegisterRoutes(secured)
	billing.NewHandler(a.billing).RegisterRoutes(secured)
	ward.NewHandler(a.ward).RegisterRoutes(secured)
	lab.NewHandler(a.lab).RegisterRoutes(secured)
	tpa.NewHandler(a.tpa).RegisterRoutes(secured)
	report.NewHandler(a.report).RegisterRoutes(secured)

	return e
}

// topicRoles mirrors the read gates of the routes serving each topic.
var topicRoles = map[string][]string{
	events.TopicBilling: billing.ReadRoles,
	events.TopicWard:    ward.ReadRoles,
	events.TopicClaims:  tpa.ReadRoles,
	events.TopicLab:     lab.ReadRoles,
}

func topicGate(c echo.Context) func(topic string) bool {
	roles := auth.RolesFromContext(c.Request().Context())
	return func(topic string) bool {
		allowed, ok := topicRoles[topic]
		return ok && auth.HasRole(roles, allowed...)
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	st, pool, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("failed to open record store")
	}
	defer st.Close()
	logger.Info().Str("backend", cfg.StoreBackend).Msg("record store ready")

	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open blob store")
	}

	key, generated, err := resolveSigningKey(cfg.JWTSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if generated {
		logger.Warn().Msg("JWT_SECRET not set; using a random key, tokens will not survive a restart")
	}

	a := newApp(cfg, st, blobs, key, logger)
	if err := a.seed(ctx, false); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed")
	}
	e := newServer(a, pool)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/khanghh/donorshield/internal/anomaly"
	"github.com/khanghh/donorshield/internal/audit"
	"github.com/khanghh/donorshield/internal/common"
	"github.com/khanghh/donorshield/internal/config"
	"github.com/khanghh/donorshield/internal/handlers/api"
	"github.com/khanghh/donorshield/internal/mail"
	"github.com/khanghh/donorshield/internal/mfa"
	"github.com/khanghh/donorshield/internal/middlewares"
	"github.com/khanghh/donorshield/internal/middlewares/ratelimit"
	"github.com/khanghh/donorshield/internal/middlewares/sessions"
	"github.com/khanghh/donorshield/internal/middlewares/signature"
	"github.com/khanghh/donorshield/internal/notify"
	"github.com/khanghh/donorshield/internal/secrets"
	"github.com/khanghh/donorshield/internal/security"
	"github.com/khanghh/donorshield/internal/store"
	"github.com/khanghh/donorshield/internal/totp"
	"github.com/khanghh/donorshield/model"
	"github.com/khanghh/donorshield/params"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
	gitTag    string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
	secretFlag = &cli.StringFlag{
		Name:     "secret",
		Usage:    "Base32 encoded TOTP secret",
		Required: true,
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "donorshield - security telemetry and admin MFA server"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		{
			Name:   "totp",
			Usage:  "Print the current TOTP code of a secret",
			Flags:  []cli.Flag{secretFlag},
			Action: printTOTPCode,
		},
	}
	app.Action = run
}

func printTOTPCode(ctx *cli.Context) error {
	now := time.Now()
	code, err := totp.GenerateCode(ctx.String(secretFlag.Name), now)
	if err != nil {
		return err
	}
	period := int64(params.TOTPPeriod.Seconds())
	fmt.Printf("%s (valid for %ds)\n", code, period-now.Unix()%period)
	return nil
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if sqlDB, err := db.DB(); err == nil {
		if dbConfig.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
	}

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

func mustInitStoreManager(redisCfg config.RedisConfig) *store.Manager {
	manager, err := store.NewManager(store.Config{
		URL:                 redisCfg.URL,
		PoolSize:            redisCfg.PoolSize,
		ConnectTimeout:      redisCfg.ConnectTimeout,
		HealthCheckInterval: redisCfg.HealthCheckInterval,
	}, store.WithLogger(slog.Default()))
	if err != nil {
		slog.Error("Invalid redis config", "error", err)
		os.Exit(1)
	}
	return manager
}

func mustInitSessionStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:      redisCfg.URL,
		PoolSize: redisCfg.PoolSize,
	})
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	if mailCfg.Backend != "smtp" {
		slog.Error("Unsupported mail sender backend", "backend", mailCfg.Backend)
		os.Exit(1)
	}
	smtpCfg := mailCfg.SMTP
	sender, err := mail.NewSMTPMailSender(mail.SMTPConfig{
		Host:     smtpCfg.Host,
		Port:     smtpCfg.Port,
		Username: smtpCfg.Username,
		Password: smtpCfg.Password,
		From:     smtpCfg.From,
		TLS:      smtpCfg.TLS,
		CertFile: smtpCfg.CertFile,
		KeyFile:  smtpCfg.KeyFile,
		CAFile:   smtpCfg.CAFile,
	})
	if err != nil {
		slog.Error("Could not initialize SMTP mail sender", "error", err)
		os.Exit(1)
	}
	return sender
}

type alertSinks struct {
	notifiers []security.AlertNotifier
	db        *gorm.DB
	closers   []func()
}

// mustInitAlertSinks builds the optional alert notifiers. Each one is
// enabled by its own config section.
func mustInitAlertSinks(cfg *config.Config) *alertSinks {
	sinks := &alertSinks{}
	if cfg.Mail.Backend != "" && len(cfg.Mail.AlertRecipients) > 0 {
		minSeverity, err := security.ParseSeverity(cfg.Mail.MinSeverity)
		if err != nil {
			slog.Error("Invalid mail.minSeverity", "error", err)
			os.Exit(1)
		}
		mailer := mail.NewAlertMailer(mustInitMailSender(cfg.Mail), minSeverity, cfg.Mail.AlertRecipients, cfg.Mail.EscalationRecipients)
		sinks.notifiers = append(sinks.notifiers, mailer)
	}
	if cfg.MySQL.Dsn != "" {
		sinks.db = mustInitDatabase(cfg.MySQL)
		archive := audit.NewAlertArchive(audit.NewAlertRepository(sinks.db))
		sinks.notifiers = append(sinks.notifiers, archive)
	}
	if cfg.Nats.URL != "" {
		nc, err := notify.Connect(cfg.Nats.URL, slog.Default())
		if err != nil {
			slog.Error("Failed to connect to NATS", "url", cfg.Nats.URL, "error", err)
			os.Exit(1)
		}
		sinks.notifiers = append(sinks.notifiers, notify.NewAlertPublisher(nc, cfg.Nats.Subject))
		sinks.closers = append(sinks.closers, nc.Close)
	}
	return sinks
}

func (s *alertSinks) readinessChecks() map[string]common.ReadinessCheck {
	checks := make(map[string]common.ReadinessCheck)
	if s.db != nil {
		checks["mysql"] = func(ctx context.Context) error {
			sqlDB, err := s.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	return checks
}

func (s *alertSinks) Close() {
	for _, closeFn := range s.closers {
		closeFn()
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	thresholds, _ := cfg.SecurityThresholds()
	manager := mustInitStoreManager(cfg.Redis)
	defer manager.Close()
	storage := store.StorageWithPrefix(store.NewRedisStorage(manager), cfg.Redis.KeyPrefix)
	sessionStorage := mustInitSessionStorage(cfg.Redis)
	sinks := mustInitAlertSinks(cfg)
	defer sinks.Close()

	hook := anomaly.NewHook(cfg.Anomaly, slog.Default())
	monitor := security.NewMonitor(storage,
		security.WithLogger(slog.Default().With("component", "security")),
		security.WithThresholds(thresholds),
		security.WithAnomalyHook(hook),
		security.WithNotifiers(sinks.notifiers...),
	)
	defer monitor.Wait()

	vault, err := secrets.NewVault(storage, cfg.MasterKey)
	if err != nil {
		return err
	}
	mfaService := mfa.NewMFAService(vault, storage, monitor, cfg.MasterKey, mfa.WithAccount(cfg.Issuer, cfg.Account))

	config.Watch(func(newCfg *config.Config) {
		thresholds, _ := newCfg.SecurityThresholds()
		monitor.SetThresholds(thresholds)
		hook.SetConfig(newCfg.Anomaly)
		slog.Info("Reloaded security thresholds", "count", len(thresholds))
	})

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-CSRF-Token",
	}))

	api.SetupRoutes(router, api.RoutesConfig{
		Sessions: sessions.Config{
			Storage:        sessionStorage,
			SessionMaxAge:  cfg.Session.SessionMaxAge,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHttpOnly: cfg.Session.CookieHttpOnly,
			CookieName:     cfg.Session.CookieName,
		},
		RateLimit: ratelimit.Config{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			Storage: sessionStorage,
		},
		Signature: signature.Config{
			Secret: cfg.Signing.Secret,
			MaxTTL: cfg.Signing.MaxTTL,
		},
	}, mfaService, monitor)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	manager.StartHealthCheck(healthCheckCtx)
	checks := sinks.readinessChecks()
	checks["redis"] = manager.Ping
	done := make(chan struct{})
	go common.StartHealthCheckServer(healthCheckCtx, done, cfg.HealthCheckAddr, checks)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(cfg.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"

	"github.com/maynagashev/tokenvault/internal/address"
	"github.com/maynagashev/tokenvault/internal/clock"
	"github.com/maynagashev/tokenvault/internal/config"
	"github.com/maynagashev/tokenvault/internal/handlers"
	"github.com/maynagashev/tokenvault/internal/logger"
	"github.com/maynagashev/tokenvault/internal/metrics"
	appmiddleware "github.com/maynagashev/tokenvault/internal/middleware"
	"github.com/maynagashev/tokenvault/internal/repository"
	"github.com/maynagashev/tokenvault/internal/services"
	"github.com/maynagashev/tokenvault/internal/storage"
	"github.com/maynagashev/tokenvault/internal/vault"
)

// metricsNamespace - префикс имен метрик сервиса.
const metricsNamespace = "tokenvault"

// Подменяются в тестах.
var (
	newPostgresDB  = repository.NewPostgresDB
	newFileStorage = func(ctx context.Context, cfg config.MinioConfig, log *logger.Logger) (storage.FileStorage, error) {
		return storage.NewMinioClient(ctx, storage.MinioConfig{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			UseSSL:          cfg.UseSSL,
			BucketName:      cfg.Bucket,
		}, log)
	}
)

// Структура для хранения инициализированных зависимостей.
type dependencies struct {
	db             *sqlx.DB // nil для хранилища в памяти
	fileStorage    storage.FileStorage
	authService    services.AuthService
	authHandler    *handlers.AuthHandler
	vaultHandler   *handlers.VaultHandler
	tokenHandler   *handlers.TokenHandler
	requestMetrics *metrics.RequestMetrics
	log            *logger.Logger
}

// close освобождает ресурсы зависимостей.
func (d *dependencies) close(log *logger.Logger) {
	if d.db == nil {
		return
	}
	if err := d.db.Close(); err != nil {
		log.Error("ошибка закрытия соединения с БД", "err", err)
	}
}

// main - точка входа. Вызывает run и обрабатывает ошибку.
func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка настройки журнала: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run(ctx, cfg, log); err != nil {
		log.Error("ошибка выполнения сервера", "err", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop вызван явно
	}
}

func newLogger(cfg config.LogConfig) (*logger.Logger, error) {
	lvl, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := logger.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return logger.New("server", os.Stdout, format, lvl)
}

// run запускает HTTP-сервер и сервис метрик и ждет их остановки.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	log.Info("запуск сервера TokenVault", "storage", cfg.Database.Backend, "tls", cfg.Server.TLSEnabled())

	deps, err := setupDependencies(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации зависимостей: %w", err)
	}
	defer deps.close(log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      setupRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var serveErr error
		if cfg.Server.TLSEnabled() {
			log.Info("запуск HTTPS-сервера", "port", cfg.Server.Port, "cert", cfg.Server.CertFile)
			serveErr = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			log.Warn("TLS не настроен, запуск HTTP-сервера", "port", cfg.Server.Port)
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("ошибка запуска HTTP-сервера: %w", serveErr)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("остановка HTTP-сервера")
		return server.Shutdown(shutdownCtx)
	})

	if cfg.Metrics.Addr != "" {
		pull := metrics.NewPullService(cfg.Metrics.Addr, log)
		g.Go(func() error {
			return pull.Run(gctx)
		})
	}

	return g.Wait()
}

// setupDependencies инициализирует и возвращает все необходимые зависимости сервера.
func setupDependencies(ctx context.Context, cfg *config.Config, log *logger.Logger) (*dependencies, error) {
	deps := &dependencies{log: log}

	// 1. Хранилище записей
	var (
		store    repository.Store
		userRepo repository.UserRepository
	)
	switch cfg.Database.Backend {
	case config.BackendMemory:
		log.Warn("используется хранилище в памяти, данные не переживут перезапуск")
		store = repository.NewMemoryStore()
		userRepo = repository.NewMemoryUserRepository()
	default:
		db, err := newPostgresDB(cfg.Database.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации БД: %w", err)
		}
		deps.db = db
		if cfg.Database.MigrateOnStart {
			if err = repository.Migrate(db, log); err != nil {
				deps.close(log)
				return nil, fmt.Errorf("ошибка применения миграций: %w", err)
			}
		}
		store = repository.NewPostgresStore(db, log)
		userRepo = repository.NewPostgresUserRepository(db, log)
	}

	// 2. Объектное хранилище выписок
	if cfg.Minio.Enabled {
		files, err := newFileStorage(ctx, cfg.Minio, log)
		if err != nil {
			deps.close(log)
			return nil, fmt.Errorf("ошибка инициализации клиента MinIO: %w", err)
		}
		deps.fileStorage = files
	} else {
		log.Warn("MinIO отключен, выписки хранятся в памяти")
		deps.fileStorage = storage.NewMemoryStorage()
	}

	// 3. Машина состояний
	deriver, err := address.NewDeriver(address.ProgramID, 0)
	if err != nil {
		deps.close(log)
		return nil, fmt.Errorf("ошибка создания деривации адресов: %w", err)
	}
	machine := vault.NewMachine(store, deriver, clock.System{}, log, metrics.NewVaultMetrics(metricsNamespace))

	// 4. Создание сервисов
	deps.authService = services.NewAuthService(userRepo, services.AuthConfig{
		Secret:   cfg.Auth.JWTSecret,
		TokenTTL: cfg.Auth.TokenTTL,
		IsAdmin:  cfg.Auth.IsAdmin,
	}, clock.System{}, log)
	vaultService := services.NewVaultService(machine, log)
	statementService := services.NewStatementService(machine, deps.fileStorage, clock.System{}, log)
	tokenService := services.NewTokenService(store, deriver, log)

	// 5. Создание обработчиков
	deps.authHandler = handlers.NewAuthHandler(deps.authService, log)
	deps.vaultHandler = handlers.NewVaultHandler(vaultService, statementService, log)
	deps.tokenHandler = handlers.NewTokenHandler(tokenService, log)
	deps.requestMetrics = metrics.NewRequestMetrics(metricsNamespace)

	return deps, nil
}

// setupRouter настраивает и возвращает роутер chi.
func setupRouter(deps *dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if deps.requestMetrics != nil {
		r.Use(deps.requestMetrics.Middleware)
	}

	// --- Маршруты --- //
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong\n"))
	})

	r.Route("/api", func(r chi.Router) {
		// Публичные маршруты (регистрация, вход)
		r.Post("/register", deps.authHandler.Register)
		r.Post("/login", deps.authHandler.Login)

		// Приватные маршруты (требуют аутентификации)
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Authenticator(deps.authService, deps.log))

			r.Route("/vault", func(r chi.Router) {
				r.Post("/", deps.vaultHandler.Initialize)
				r.Get("/", deps.vaultHandler.Status)
				r.Post("/deposit", deps.vaultHandler.Deposit)
				r.Post("/lock", deps.vaultHandler.Lock)
				r.Post("/unlock", deps.vaultHandler.Unlock)
				r.Post("/withdraw", deps.vaultHandler.Withdraw)
				r.Get("/history", deps.vaultHandler.History)
				r.Post("/statements", deps.vaultHandler.CreateStatement)
				r.Get("/statements/{id}", deps.vaultHandler.GetStatement)
			})

			r.Route("/tokens", func(r chi.Router) {
				r.With(appmiddleware.RequireAdmin).Post("/mints", deps.tokenHandler.CreateMint)
				r.Get("/{mint}", deps.tokenHandler.GetMint)
				r.Get("/{mint}/balance", deps.tokenHandler.Balance)
				r.With(appmiddleware.RequireAdmin).Post("/{mint}/mint", deps.tokenHandler.MintTo)
			})
		})
	})
	return r
}

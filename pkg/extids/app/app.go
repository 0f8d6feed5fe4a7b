// Package app wires the database, cache, services and router shared by
// extids-server and extidsctl.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/mikepea/extids/pkg/extids/auth"
	"github.com/mikepea/extids/pkg/extids/cache"
	"github.com/mikepea/extids/pkg/extids/catalog"
	"github.com/mikepea/extids/pkg/extids/clients"
	"github.com/mikepea/extids/pkg/extids/config"
	"github.com/mikepea/extids/pkg/extids/database"
	"github.com/mikepea/extids/pkg/extids/externalids"
	"github.com/mikepea/extids/pkg/extids/importexport"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/records"
	"github.com/mikepea/extids/pkg/extids/systems"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
)

// App holds the wired services
type App struct {
	Config   *config.Config
	Log      logger.Logger
	DB       *gorm.DB
	Registry *records.Registry
	Cache    cache.SystemCache
	Systems  *systems.Service
	URLs     *urltemplates.Service
	IDs      *externalids.Service
	Clients  *clients.Service
	Imports  *importexport.Service
	Catalog  *catalog.Applier
	Issuer   *auth.Issuer

	redis *redis.Client
}

// New opens the database, runs migrations, connects the cache and builds every service.
// Record types from cfg.CatalogFile are registered but systems are not written;
// call ApplyCatalog for that.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("database ready", logger.String("driver", cfg.DBDriver), logger.String("path", cfg.DBPath))

	a := &App{Config: cfg, Log: log, DB: db, Registry: records.NewRegistry()}
	if err := a.connectCache(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Systems = systems.NewService(db, a.Cache, log)
	a.URLs = urltemplates.NewService(db)
	a.IDs = externalids.NewService(db, a.Systems, a.Registry, log)
	a.Clients = clients.NewService(db)
	a.Imports = importexport.NewService(a.IDs, log)
	a.Catalog = catalog.NewApplier(db, a.Registry, a.Systems, a.URLs, log)
	a.Issuer = auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set, signing tokens with the development secret")
	}

	if cfg.CatalogFile != "" {
		c, err := catalog.Load(cfg.CatalogFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		n, err := a.Catalog.RegisterRecordTypes(c)
		if err != nil {
			a.Close()
			return nil, err
		}
		log.Info("record types registered", logger.Int("count", n), logger.String("catalog", cfg.CatalogFile))
	}
	return a, nil
}

func (a *App) connectCache(ctx context.Context) error {
	if a.Config.RedisAddr == "" {
		a.Cache = cache.Nop{}
		return nil
	}
	client, err := cache.Dial(ctx, cache.ConnectOptions{
		Addr:          a.Config.RedisAddr,
		Password:      a.Config.RedisPassword,
		DB:            a.Config.RedisDB,
		Timeout:       10 * time.Second,
		RetryInterval: 250 * time.Millisecond,
		MaxWait:       2 * time.Second,
	}, a.Log)
	if err != nil {
		return err
	}
	a.redis = client
	a.Cache = cache.NewRedis(client, a.Config.CacheTTL)
	return nil
}

// ApplyCatalog writes the systems and templates of cfg.CatalogFile
func (a *App) ApplyCatalog(ctx context.Context) (*catalog.Result, error) {
	if a.Config.CatalogFile == "" {
		return &catalog.Result{}, nil
	}
	c, err := catalog.Load(a.Config.CatalogFile)
	if err != nil {
		return nil, err
	}
	return a.Catalog.Apply(ctx, c)
}

// EnsureAdmin creates the bootstrap admin client when it does not exist yet.
// A generated secret is logged once.
func (a *App) EnsureAdmin(ctx context.Context) error {
	name := a.Config.AdminClient
	if name == "" {
		return nil
	}
	secret := a.Config.AdminSecret
	generated := secret == ""
	if generated {
		var err error
		if secret, err = clients.GenerateSecret(); err != nil {
			return err
		}
	}

	client, created, err := a.Clients.Ensure(ctx, clients.Input{Name: name, Secret: secret, Role: models.ClientRoleAdmin})
	if err != nil {
		return fmt.Errorf("ensure admin client: %w", err)
	}
	if !created {
		return nil
	}
	if generated {
		a.Log.Warn("created admin client with a generated secret",
			logger.String("client", client.Name), logger.String("secret", secret))
		return nil
	}
	a.Log.Info("created admin client", logger.String("client", client.Name))
	return nil
}

// Close releases the database and cache connections
func (a *App) Close() error {
	var first error
	if a.redis != nil {
		first = a.redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

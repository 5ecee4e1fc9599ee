package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/ripeness-api/internal/catalog"
	"github.com/Brownie44l1/ripeness-api/internal/classifier"
	"github.com/Brownie44l1/ripeness-api/internal/config"
	"github.com/Brownie44l1/ripeness-api/internal/db"
	"github.com/Brownie44l1/ripeness-api/internal/db/repository"
	"github.com/Brownie44l1/ripeness-api/internal/filestorage"
	"github.com/Brownie44l1/ripeness-api/internal/logger"
	"github.com/Brownie44l1/ripeness-api/internal/model"
	"github.com/Brownie44l1/ripeness-api/internal/preprocess"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

type App struct {
	config     *config.Config
	ctx        context.Context
	cancelFunc context.CancelFunc

	db       *bun.DB
	runtimes model.Runtimes
	provider model.Provider
	cache    *model.Cache
	storage  filestorage.FileStorage

	Logger     *zap.Logger
	Catalog    *catalog.Catalog
	Classifier *classifier.Classifier

	ClassificationRepository repository.IClassificationRepository
}

// Option funcs used to initialize the App struct
type OptionFunc func(app *App) error

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(app *App) error {
		app.Logger = logger
		return nil
	}
}

func WithCatalog(cat *catalog.Catalog) OptionFunc {
	return func(app *App) error {
		app.Catalog = cat
		return nil
	}
}

// WithRuntimes registers the inference engines the model loader may use.
func WithRuntimes(runtimes model.Runtimes) OptionFunc {
	return func(app *App) error {
		app.runtimes = runtimes
		return nil
	}
}

// WithProvider replaces the config-driven model loader.
func WithProvider(provider model.Provider) OptionFunc {
	return func(app *App) error {
		app.provider = provider
		return nil
	}
}

func WithStorage(storage filestorage.FileStorage) OptionFunc {
	return func(app *App) error {
		app.storage = storage
		return nil
	}
}

func WithFileStorage() OptionFunc {
	return func(app *App) error {
		storage, err := filestorage.NewFileStorage(app.config)
		if err != nil {
			return err
		}
		app.storage = storage
		return nil
	}
}

func WithDB(conn *bun.DB) OptionFunc {
	return func(app *App) error {
		if err := db.CreateTables(app.ctx, conn); err != nil {
			return err
		}
		app.db = conn
		app.ClassificationRepository = repository.NewClassificationRepository(conn)
		return nil
	}
}

// WithHistory connects to the configured database when history is enabled.
func WithHistory() OptionFunc {
	return func(app *App) error {
		if !app.config.History.Enabled {
			return nil
		}

		conn, err := db.NewConnection(app.ctx, app.config.DB.Driver, app.config.DB.DSN, !app.config.IsProduction())
		if err != nil {
			return err
		}
		if err := WithDB(conn)(app); err != nil {
			conn.Close()
			return err
		}
		return nil
	}
}

func NewApp(cfg *config.Config, options ...OptionFunc) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &App{
		ctx:        ctx,
		config:     cfg,
		cancelFunc: cancel,
	}

	for _, opt := range options {
		if err := opt(app); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := app.init(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init() error {
	if app.Logger == nil {
		l, err := logger.New(app.config.Environment)
		if err != nil {
			return err
		}
		app.Logger = l
	}

	if app.Catalog == nil {
		cat := catalog.Default()
		if app.config.Catalog.File != "" {
			var err error
			if cat, err = catalog.LoadFile(app.config.Catalog.File); err != nil {
				return err
			}
		}
		app.Catalog = cat
	}

	if app.provider == nil {
		if len(app.runtimes) == 0 {
			return errors.New("no model runtime registered")
		}
		loader := model.NewLoader(app.ModelConfig(), app.runtimes, app.Catalog.Keys(), app.Logger)
		if app.config.Model.Cache {
			app.cache = model.NewCache(loader)
			app.provider = app.cache
		} else {
			app.provider = loader
		}
	}

	pre := preprocess.New(app.config.Preprocess.Size, app.config.Preprocess.Alpha, app.config.Preprocess.Beta)
	if app.config.Preprocess.MaxPixels > 0 {
		pre.MaxPixels = app.config.Preprocess.MaxPixels
	}
	app.Classifier = classifier.New(app.provider, pre, app.Catalog, app.config.Classifier.Threshold, app.Logger)
	return nil
}

func (app *App) ModelConfig() model.Config {
	return model.Config{
		Path:         app.config.Model.Path,
		LabelMapPath: app.config.Model.LabelMap,
		Runtime:      app.config.Model.Runtime,
	}
}

func (app *App) Close() {
	app.cancelFunc()

	if app.cache != nil {
		if err := app.cache.Close(); err != nil && app.Logger != nil {
			app.Logger.Warn("failed to close model", zap.Error(err))
		}
	}
	if app.db != nil {
		app.db.Close()
	}
	if app.Logger != nil {
		_ = app.Logger.Sync()
	}
}

func (app *App) Config() *config.Config {
	return app.config
}

func (app *App) Context() context.Context {
	return app.ctx
}

func (app *App) DB() *bun.DB {
	return app.db
}

func (app *App) Storage() filestorage.FileStorage {
	return app.storage
}

func (app *App) HistoryEnabled() bool {
	return app.ClassificationRepository != nil
}

package app

import (
	"context"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"imgtasks/internal/cache"
	"imgtasks/internal/config"
	"imgtasks/internal/events"
	"imgtasks/internal/services"
	"imgtasks/internal/storage"
	"imgtasks/internal/store"
	"imgtasks/internal/store/primary"
	"imgtasks/internal/transform"
)

// App wires the orchestration layer together. Queue and cache handles are
// explicit constructor-injected clients, never package-level singletons, so
// every path can be exercised with fakes.
type App struct {
	Config *config.Config

	TaskStore   *primary.StoreImpl
	JobClient   store.JobClient
	RedisClient *redis.Client
	Cache       *cache.Cache
	Publisher   events.Publisher
	Artifacts   storage.ArtifactStore
	Transformer transform.Transformer
	TaskService *services.TaskService
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	app := &App{Config: cfg}

	if err := app.initTaskStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initRedis(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.initJobClient()
	app.initCollaborators()
	app.initTaskService()

	log.Info("application initialization complete")
	return app, nil
}

func (a *App) initTaskStore(ctx context.Context) error {
	ts, err := primary.NewTaskStore(ctx, a.Config.Database.DSN)
	if err != nil {
		return fmt.Errorf("init task store: %w", err)
	}
	a.TaskStore = ts
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("unable to ping redis: %w", err)
	}
	a.RedisClient = client
	a.Cache = cache.New(cache.NewRedisBackend(client))
	a.Publisher = events.NewChannelPublisher(events.NewRedisBroadcaster(client), a.Config.Events.Channel)
	return nil
}

func (a *App) initJobClient() {
	a.JobClient = store.NewAsynqJobClient(a.AsynqRedisOpt(), a.Config.Queue.MaxRetry)
}

func (a *App) initCollaborators() {
	a.Artifacts = storage.NewLocalArtifactStore(a.Config.Storage.Root)
	a.Transformer = transform.NewFileTransformer(a.Config.Transform.Variants)
}

func (a *App) initTaskService() {
	a.TaskService = services.NewTaskService(services.TaskServiceDeps{
		Tasks:     a.TaskStore,
		Jobs:      a.JobClient,
		Cache:     a.Cache,
		Publisher: a.Publisher,
		Artifacts: a.Artifacts,
		TTLs: services.CacheTTLs{
			Task:        a.Config.Cache.TaskTTL,
			List:        a.Config.Cache.ListTTL,
			Idempotency: a.Config.Cache.IdempotencyTTL,
		},
	})
}

// AsynqRedisOpt builds the queue connection options from the shared Redis
// configuration.
func (a *App) AsynqRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

// WorkerID identifies this process in processing events.
func WorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// Close releases every owned connection. Safe to call on a partially
// initialized App.
func (a *App) Close() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.WithError(err).Warn("closing job client")
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			log.WithError(err).Warn("closing redis client")
		}
	}
	if a.TaskStore != nil {
		a.TaskStore.Close()
	}
}

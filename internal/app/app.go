// Package app builds the components shared by the API server and the worker from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/lecturemate/backend/config"
	"github.com/lecturemate/backend/internal/acquisition"
	"github.com/lecturemate/backend/internal/auth"
	"github.com/lecturemate/backend/internal/generate"
	"github.com/lecturemate/backend/internal/lectures"
	"github.com/lecturemate/backend/internal/localmodel"
	"github.com/lecturemate/backend/internal/pipeline"
	"github.com/lecturemate/backend/internal/realtime"
	"github.com/lecturemate/backend/internal/runstate"
	"github.com/lecturemate/backend/internal/youtube"
	"github.com/lecturemate/backend/pkg/database"
	"github.com/lecturemate/backend/pkg/executor"
	"github.com/lecturemate/backend/pkg/queue"
	"github.com/lecturemate/backend/pkg/redis"
	"github.com/lecturemate/backend/pkg/storage"
)

// App holds the wired components. Close releases every client it opened.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Pool  *pgxpool.Pool
	Redis *goredis.Client

	Store lectures.Store
	Users auth.UserStore
	Media storage.MediaStore

	Queue    *queue.Queue
	Registry runstate.Registry
	Hub      *realtime.Hub

	Generator    *generate.Service
	Transcriber  acquisition.Transcriber
	Captions     acquisition.Acquirer
	Speech       acquisition.Acquirer
	Info         youtube.MetadataSource
	Orchestrator *pipeline.Orchestrator
	Supervisor   *localmodel.Supervisor

	closers []func()
}

// New connects to the configured backends and wires the pipeline.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.wire()
	return a, nil
}

// Close releases clients in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) { a.closers = append(a.closers, fn) }

func (a *App) connect(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	a.Redis = rdb
	a.onClose(func() { _ = rdb.Close() })

	// Users live in Postgres for both the postgres and firestore lecture stores.
	if cfg.Store.Backend == "memory" {
		a.Store = lectures.NewMemoryStore()
		a.Users = auth.NewMemoryUsers()
		logger.Warn("using in-memory lecture and user stores")
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		a.Pool = pool
		a.onClose(pool.Close)
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		a.Users = auth.NewRepository(pool)
		a.Store = lectures.NewRepository(pool)
	}

	if cfg.Store.Backend == "firestore" {
		var opts []option.ClientOption
		if cfg.GCS.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCS.CredentialsFile))
		}
		client, err := firestore.NewClient(ctx, cfg.Store.FirestoreProject, opts...)
		if err != nil {
			return fmt.Errorf("firestore: %w", err)
		}
		a.onClose(func() { _ = client.Close() })
		a.Store = lectures.NewFirestore(client, cfg.Store.FirestoreCollection)
		logger.Info("lecture store: firestore", zap.String("project", cfg.Store.FirestoreProject))
	}

	media, err := a.mediaStore(ctx)
	if err != nil {
		return err
	}
	a.Media = media
	return nil
}

func (a *App) mediaStore(ctx context.Context) (storage.MediaStore, error) {
	cfg, logger := a.Config, a.Logger
	switch {
	case cfg.AWS.MediaBucket != "":
		s3, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			MediaBucket:     cfg.AWS.MediaBucket,
			Endpoint:        cfg.AWS.Endpoint,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("s3: %w", err)
		}
		return s3, nil
	case cfg.GCS.Bucket != "":
		gcs, err := storage.NewGCS(ctx, storage.GCSConfig{
			Bucket:          cfg.GCS.Bucket,
			CredentialsFile: cfg.GCS.CredentialsFile,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		a.onClose(func() { _ = gcs.Close() })
		return gcs, nil
	case cfg.Pipeline.InlineWorker:
		logger.Warn("no media bucket configured, keeping uploads in memory")
		return storage.NewMemory(), nil
	default:
		logger.Warn("no media bucket configured, uploads and the audio cache are disabled")
		return nil, nil
	}
}

func (a *App) wire() {
	cfg, logger := a.Config, a.Logger

	whisper := acquisition.Defaults{
		ModelSize: cfg.Whisper.ModelSize,
		Language:  cfg.Whisper.Language,
		Device:    cfg.Whisper.Device,
	}
	exec := executor.New(executor.WithTimeout(cfg.Scripts.ScriptTimeout()))
	python := cfg.Scripts.Python

	modelURL := cfg.LocalModel.URL
	if cfg.LocalModel.Autostart {
		a.Supervisor = localmodel.NewSupervisor(python, cfg.Scripts.Dir, cfg.LocalModel.Port, logger)
		modelURL = a.Supervisor.URL()
	}
	local := localmodel.NewClient(modelURL, cfg.LocalModel.Device, time.Duration(cfg.LocalModel.TimeoutSec)*time.Second)

	a.Transcriber = acquisition.NewFallbackTranscriber(logger,
		acquisition.NewServerTranscriber(local, whisper),
		acquisition.NewScriptTranscriber(exec, python, cfg.Scripts.Script(cfg.Scripts.WhisperScript), whisper),
	)
	a.Captions = acquisition.NewCaptions(exec, python, cfg.Scripts.Script(cfg.Scripts.CaptionsScript))
	a.Speech = acquisition.NewSpeech(exec, python, cfg.Scripts.Script(cfg.Scripts.DownloadScript),
		cfg.Scripts.TempDir, a.Transcriber, a.Media, logger)
	var upload acquisition.Acquirer
	if a.Media != nil {
		upload = acquisition.NewUpload(a.Media, a.Transcriber, cfg.Scripts.TempDir)
	}
	acquirer := acquisition.NewService(a.Captions, a.Speech, upload, logger)
	a.Info = youtube.NewInfoFetcher(exec, python, cfg.Scripts.Script(cfg.Scripts.InfoScript))

	a.Generator = newGenerator(cfg, local, logger)

	a.Queue = queue.NewQueue(a.Redis, logger)
	a.Registry = runstate.NewRedis(a.Redis,
		time.Duration(cfg.Pipeline.CancelTTLMinutes)*time.Minute,
		time.Duration(cfg.Pipeline.RunTTLMinutes)*time.Minute)
	pubsub := realtime.NewRedisPubSub(a.Redis, logger)
	a.Hub = realtime.NewHub(logger, pubsub, pubsub)

	a.Orchestrator = pipeline.New(a.Store, acquirer, a.Generator, a.Registry,
		pipeline.NewQueueEnqueuer(a.Queue), a.Hub, logger)
}

// newGenerator keeps unconfigured backends out of the chain as untyped nils.
func newGenerator(cfg *config.Config, local generate.LocalModel, logger *zap.Logger) *generate.Service {
	var (
		cloud      generate.Backend
		summarizer generate.TextSummarizer
	)
	if gemini := generate.NewGemini(cfg.Gemini.APIKeys, cfg.Gemini.Model, logger); gemini != nil {
		cloud, summarizer = gemini, gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, cloud generation disabled")
	}
	return generate.NewService(cloud, generate.NewLocal(local), summarizer, logger)
}

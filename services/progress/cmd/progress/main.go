package main

import (
	"context"
	"net"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/example/questor/internal/platform/analytics"
	"github.com/example/questor/internal/platform/auth"
	"github.com/example/questor/internal/platform/config"
	"github.com/example/questor/internal/platform/db"
	"github.com/example/questor/internal/platform/httpserver"
	"github.com/example/questor/internal/platform/logging"
	"github.com/example/questor/internal/platform/natsconn"
	"github.com/example/questor/internal/platform/run"
	"github.com/example/questor/internal/platform/signing"
	"github.com/example/questor/services/progress/internal/certify"
	"github.com/example/questor/services/progress/internal/course"
	"github.com/example/questor/services/progress/internal/events"
	"github.com/example/questor/services/progress/internal/handlers"
	"github.com/example/questor/services/progress/internal/idempotency"
	"github.com/example/questor/services/progress/internal/recorder"
	"github.com/example/questor/services/progress/internal/store"
	"github.com/example/questor/services/progress/internal/worker"
)

const streamName = "PROGRESS"

type stores struct {
	courses      store.CourseStore
	progress     store.ProgressStore
	certificates store.CertificateStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	pool := initDatabase(cfg, log)
	if pool != nil {
		defer pool.Close()
	}
	st := initStores(pool)
	seedCourses(cfg, st.courses, log)

	var cached *store.CachedCourseStore
	if cfg.Store.RedisURL != "" {
		cached = initCourseCache(cfg, st.courses, log)
		st.courses = cached
	}

	nc, js := initNATS(cfg, log)
	if nc != nil {
		defer nc.Close()
	}
	if nc != nil && cached != nil {
		if _, err := nc.Subscribe(store.SubjectCourseUpdated, func(m *nats.Msg) {
			if err := cached.Invalidate(context.Background(), string(m.Data)); err != nil {
				log.Warn("course cache invalidate failed", zap.String("course_id", string(m.Data)), zap.Error(err))
			}
		}); err != nil {
			log.Warn("course invalidation subscribe failed", zap.Error(err))
		}
	}

	tracker := analytics.New(js, log)
	newID, err := certify.IDScheme(cfg.Certificates.IDScheme)
	if err != nil {
		log.Error("certificate id scheme", zap.Error(err))
		run.Exit(1)
	}
	issuer := certify.NewIssuer(st.courses, st.progress, st.certificates, st.courses, log,
		certify.WithIDFunc(newID), certify.WithEvents(tracker))
	rec := recorder.New(st.progress, issuer, tracker, log)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			if pool == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(ctx)
		},
		Logger:      log,
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})
	handlers.Mount(r, handlers.Deps{
		Courses:      st.courses,
		Progress:     st.progress,
		Certificates: st.certificates,
		Recorder:     rec,
		Publisher:    handlers.NewEventPublisher(js, cfg.Events.AsyncWrites),
		Events:       tracker,
		Share: handlers.ShareConfig{
			Signer:  signing.New(shareSecret(cfg, log)),
			BaseURL: cfg.Certificates.ShareBaseURL,
			TTL:     cfg.Certificates.ShareLinkTTL,
		},
		Verifier: auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)},
		Log:      log,
	})
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: r})

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		run.Exit(1)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	reflection.Register(grpcSrv)
	go func() {
		log.Info("grpc server starting", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if js != nil {
			dedup, err := idempotency.NewStore(cfg.Store.RedisURL, pool, cfg.Events.IdempotencyTTL, cfg.IsProd())
			if err != nil {
				return err
			}
			consumer := worker.NewPlaybackConsumer(rec, dedup, log, worker.Options{
				BatchSize:     cfg.Events.BatchSize,
				BatchInterval: cfg.Events.BatchInterval,
			})
			if err := consumer.Start(ctx, js); err != nil {
				log.Error("playback consumer", zap.Error(err))
			}
		}

		go func() {
			<-ctx.Done()
			healthSrv.Shutdown()
			stopped := make(chan struct{})
			go func() {
				grpcSrv.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(10 * time.Second):
				grpcSrv.Stop()
			}
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initDatabase opens and migrates Postgres. In production a failure is
// fatal; in development the service continues with in-memory stores.
func initDatabase(cfg config.AppConfig, log *zap.Logger) *pgxpool.Pool {
	if cfg.Store.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores (development only)")
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.Store.DatabaseURL)
	if err == nil {
		err = db.Migrate(ctx, pool)
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		if cfg.IsProd() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory stores", zap.Error(err))
		return nil
	}
	log.Info("progress store: postgres")
	return pool
}

func initStores(pool *pgxpool.Pool) stores {
	if pool == nil {
		return stores{
			courses:      store.NewMemoryCourseStore(),
			progress:     store.NewMemoryProgressStore(),
			certificates: store.NewMemoryCertificateStore(),
		}
	}
	return stores{
		courses:      store.NewPostgresCourseStore(pool),
		progress:     store.NewPostgresProgressStore(pool),
		certificates: store.NewPostgresCertificateStore(pool),
	}
}

// seedCourses loads COURSES_FILE into the catalog at startup.
func seedCourses(cfg config.AppConfig, courses store.CourseStore, log *zap.Logger) {
	if cfg.Store.CoursesFile == "" {
		return
	}
	list, err := course.LoadFile(cfg.Store.CoursesFile)
	if err != nil {
		log.Error("course catalog load failed", zap.String("file", cfg.Store.CoursesFile), zap.Error(err))
		return
	}
	for _, c := range list {
		if err := courses.PutCourse(context.Background(), c); err != nil {
			log.Error("course seed failed", zap.String("course_id", c.ID), zap.Error(err))
		}
	}
	log.Info("course catalog seeded", zap.Int("courses", len(list)))
}

func initCourseCache(cfg config.AppConfig, next store.CourseStore, log *zap.Logger) *store.CachedCourseStore {
	opts, err := redis.ParseURL(cfg.Store.RedisURL)
	if err != nil {
		opts = &redis.Options{Addr: cfg.Store.RedisURL}
	}
	log.Info("course cache: redis", zap.Duration("ttl", cfg.Store.CourseCacheTTL))
	return store.NewCachedCourseStore(next, redis.NewClient(opts), cfg.Store.CourseCacheTTL, log)
}

// initNATS connects to NATS and prepares the progress stream. NATS is
// optional: without it ticks are recorded inline and analytics are dropped.
func initNATS(cfg config.AppConfig, log *zap.Logger) (*nats.Conn, nats.JetStreamContext) {
	if cfg.Events.NATSURL == "" {
		log.Info("NATS_URL not set, async ingestion and analytics disabled")
		return nil, nil
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.Events.NATSURL, Name: cfg.ServiceName})
	if err != nil {
		log.Error("nats connect", zap.Error(err))
		return nil, nil
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Error("jetstream", zap.Error(err))
		return nc, nil
	}
	subjects := append([]string{events.SubjectPlayback}, analytics.Subjects...)
	if err := natsconn.EnsureStream(js, streamName, subjects, 7*24*time.Hour); err != nil {
		log.Error("ensure stream", zap.String("stream", streamName), zap.Error(err))
		return nc, nil
	}
	return nc, js
}

func shareSecret(cfg config.AppConfig, log *zap.Logger) string {
	if cfg.Certificates.ShareSecret != "" {
		return cfg.Certificates.ShareSecret
	}
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret
	}
	log.Warn("SHARE_SECRET not set, share links will not survive a restart")
	return uuid.NewString()
}

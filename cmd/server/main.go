package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-redsync/redsync/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/tasktrack/backend/internal/config"
	"github.com/tasktrack/backend/internal/repository"
	"github.com/tasktrack/backend/internal/repository/sqlite"
	"github.com/tasktrack/backend/internal/scheduler"
	"github.com/tasktrack/backend/internal/server"
	"github.com/tasktrack/backend/internal/service"
	"github.com/tasktrack/backend/pkg/crypto"
)

// stores is the persistence backend selected by DB_DRIVER.
type stores struct {
	tx      service.Transactor
	users   service.UserStore
	tasks   service.TaskStore
	events  service.EventLog
	history service.PlanChangeLog
	ping    func(ctx context.Context) error
	close   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := cfg.NewLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("database error")
	}
	defer st.close()
	log.WithField("driver", cfg.DBDriver).Info("database connected & migrated")

	var sealer service.NoteSealer
	if cfg.EncryptionKey != "" {
		enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			log.WithError(err).Fatal("encryption error")
		}
		sealer = enc
		log.Info("notes encryption enabled")
	}

	// Initialize services
	authSvc := service.NewAuthService(cfg.JWTSecret, st.users, nil, log)
	taskSvc := service.NewTaskService(st.tx, st.users, st.tasks, st.events, log,
		service.WithNoteSealer(sealer),
		service.WithDeleteEvents(cfg.EmitDeleteEvents),
	)
	subSvc := service.NewSubscriptionService(st.tx, st.users, st.tasks, st.history, sealer, nil, log)
	analyticsSvc := service.NewAnalyticsService(st.tasks, st.events, cfg.Location, nil, log)
	reminderSvc := service.NewReminderService(st.tasks, st.users, service.NewLogNotifier(log), nil, log)

	// Background jobs
	var rs *redsync.Redsync
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis not available, jobs run without locks")
		} else {
			rs = scheduler.NewRedsync(rdb)
			log.WithField("addr", cfg.RedisAddr).Info("redis connected")
		}
	}

	sched := scheduler.New(cfg.Location, rs, log)
	if err := sched.Add("reminders", cfg.ReminderSchedule, func(ctx context.Context) error {
		_, err := reminderSvc.Dispatch(ctx)
		return err
	}); err != nil {
		log.WithError(err).Fatal("scheduler error")
	}
	if err := sched.Add("subscription-expiry", cfg.ExpirySchedule, func(ctx context.Context) error {
		_, err := subSvc.ExpireLapsed(ctx)
		return err
	}); err != nil {
		log.WithError(err).Fatal("scheduler error")
	}
	sched.Start()

	router := server.NewRouter(ctx, server.Deps{
		Auth:          authSvc,
		Tasks:         taskSvc,
		Subscriptions: subSvc,
		Analytics:     analyticsSvc,
		Ping:          st.ping,
		CORSOrigins:   cfg.CORSOrigins,
		Log:           log,
	})

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down")
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
		sched.Stop(shutdownCtx)
		cancel()
	}()

	log.WithField("addr", addr).Info("tasktrack backend listening")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("server error")
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{
			tx:      sqlite.NewTxManager(db),
			users:   sqlite.NewUserStore(db),
			tasks:   sqlite.NewTaskStore(db, nil),
			events:  sqlite.NewEventLog(db),
			history: sqlite.NewPlanChangeLog(db),
			ping:    db.PingContext,
			close:   func() { db.Close() },
		}, nil
	default:
		db, err := repository.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := repository.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration error: %w", err)
		}
		return &stores{
			tx:      repository.NewTxManager(db),
			users:   repository.NewUserRepository(db),
			tasks:   repository.NewTaskRepository(db, nil),
			events:  repository.NewEventRepository(db),
			history: repository.NewPlanChangeRepository(db),
			ping:    db.Ping,
			close:   db.Close,
		}, nil
	}
}

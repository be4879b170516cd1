package cli

import (
	"context"
	"fmt"
	"time"

	"fitquiz-assignment-service/internal/app"
	"fitquiz-assignment-service/internal/config"
	"fitquiz-assignment-service/internal/domain"
	"fitquiz-assignment-service/internal/event"
	"fitquiz-assignment-service/internal/infra/memory"
	inframongo "fitquiz-assignment-service/internal/infra/mongo"
	"fitquiz-assignment-service/internal/infra/postgres"
	infraredis "fitquiz-assignment-service/internal/infra/redis"
	"fitquiz-assignment-service/internal/logging"
	"fitquiz-assignment-service/internal/metrics"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type documentStore interface {
	app.UserStore
	app.QuizStore
	app.CollectionStore
}

// runtime holds the wired collaborators shared by the start and sweep commands.
type runtime struct {
	cfg      config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	service  *app.Service
	closers  []func()
}

func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	rt := &runtime{
		cfg:      cfg,
		log:      logging.New(cfg.Log.Level, cfg.Log.Format),
		registry: prometheus.NewRegistry(),
	}
	storeTimeout := config.TTLDuration(cfg.Store.Timeout, 10*time.Second)

	store, err := rt.openStore(ctx, storeTimeout)
	if err != nil {
		rt.close()
		return nil, err
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizzes app.QuizStore
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		quizzes = infraredis.NewQuizCache(client, store, quizTTL)
	} else {
		quizzes = memory.NewQuizCache(store, quizTTL)
	}

	var publisher app.Publisher = event.Discard{}
	if cfg.Events.AMQPURL != "" {
		p, err := event.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange, rt.log)
		if err != nil {
			rt.log.WithError(err).Warn("event publishing disabled")
		} else {
			rt.closers = append(rt.closers, func() { _ = p.Close() })
			publisher = p
		}
	}

	rt.service = app.NewService(store, quizzes, store, app.Options{
		Logger:        rt.log,
		Publisher:     publisher,
		Recorder:      metrics.NewRecorder(rt.registry),
		SystemActorID: cfg.Sweep.SystemActorID,
		GrantTimeout:  storeTimeout,
	})
	return rt, nil
}

// openStore picks Mongo, then Postgres, then the seeded in-memory store.
func (rt *runtime) openStore(ctx context.Context, timeout time.Duration) (documentStore, error) {
	cfg := rt.cfg
	switch {
	case cfg.Mongo.URI != "":
		client, err := inframongo.Connect(ctx, cfg.Mongo.URI, timeout)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = client.Disconnect(context.Background()) })
		database := cfg.Mongo.Database
		if database == "" {
			database = "fitquiz"
		}
		rt.log.WithField("database", database).Info("using mongo store")
		return inframongo.NewStore(client.Database(database)), nil

	case cfg.Postgres.URL != "":
		if err := runMigrationsWithConfig(ctx, cfg, rt.log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		rt.log.Info("using postgres store")
		return postgres.NewStore(pool), nil

	default:
		rt.log.Warn("no database configured, using seeded in-memory store")
		return seededStore(ctx)
	}
}

// seededStore provides a minimal data set for local runs.
func seededStore(ctx context.Context) (*memory.Store, error) {
	store := memory.NewStore()
	now := time.Now().UTC()
	store.PutUser(domain.User{ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin, CreatedAt: now})
	store.PutUser(domain.User{ID: "user-1", Name: "Demo User", Role: domain.RoleUser, CreatedAt: now})
	store.PutCollection(domain.Collection{ID: "starter-pack", Name: "Starter Pack", Description: "First week workouts", DisplayOrder: 1, IsPublic: true})
	store.PutCollection(domain.Collection{ID: "mobility", Name: "Mobility", Description: "Daily stretching", DisplayOrder: 2, IsPublic: true})

	oneDay := 1
	err := store.SaveQuiz(ctx, &domain.Quiz{
		ID:                 "onboarding",
		Name:               "Onboarding",
		CompletionMessage:  "Welcome aboard! Your first collections are ready.",
		TriggerType:        domain.TriggerTimeInterval,
		TriggerDelayAmount: &oneDay,
		TriggerDelayUnit:   domain.UnitDays,
		TriggerStartFrom:   domain.StartFromRegistration,
		TimeFrameHandling:  domain.HandlingAllUsers,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
		Questions: []domain.Question{
			{
				ID:           "goal",
				Type:         domain.QuestionMultipleChoice,
				QuestionText: "What is your main goal?",
				Options: []domain.Option{
					{ID: "strength", Text: "Build strength", AssignCollection: "starter-pack"},
					{ID: "flexibility", Text: "Move better", AssignCollection: "mobility"},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/matembezi/apps/api/echo"
	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/adventure"
	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/exploration"
	"github.com/trezcool/matembezi/core/feed"
	"github.com/trezcool/matembezi/core/feedback"
	"github.com/trezcool/matembezi/core/notification"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/stats"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/tasks"
	"github.com/trezcool/matembezi/core/user"
	"github.com/trezcool/matembezi/core/versioned"
	emailsvc "github.com/trezcool/matembezi/services/email"
	logsvc "github.com/trezcool/matembezi/services/logger"
	"github.com/trezcool/matembezi/services/taskqueue/memqueue"
	"github.com/trezcool/matembezi/services/taskqueue/redisqueue"
	"github.com/trezcool/matembezi/storage/database"
	boiledrepos "github.com/trezcool/matembezi/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/matembezi/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type JobsLoggerParam struct {
	dig.In
	Logger core.Logger `name:"jobsLogger"`
}

func newRollbarLogger(conf *core.Config, prefix string, flags int) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, prefix, flags), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "API : ", log.LstdFlags)
}

func newDBLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func newJobsLogger(conf *core.Config) core.Logger {
	return newRollbarLogger(conf, "JOBS : ", log.LstdFlags|log.Lmicroseconds)
}

func dbProvider(migrate bool) func(*core.Config, DBLoggerParam) *sqlx.DB {
	return func(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
		setUp := func() (*sqlx.DB, error) {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}

			db, err := database.Open(conf)
			if err != nil {
				return nil, err
			}

			if migrate {
				if err = database.Migrate(db.DB); err != nil {
					_ = db.Close()
					return nil, err
				}
			}
			return db, nil
		}

		db, err := setUp()
		if err != nil {
			loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
		}
		return db
	}
}

// newTaskQueue uses redis when an address is configured, the in-process queue otherwise.
func newTaskQueue(conf *core.Config, loggerParam JobsLoggerParam) tasks.Queue {
	if conf.Redis.Address == "" {
		loggerParam.Logger.Warn("no redis address configured: jobs are queued in memory")
		return memqueue.New()
	}
	queue, err := redisqueue.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return queue
}

func newEmailService(conf *core.Config) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, os.Stdout)
	}
	return emailsvc.NewSendgridService(conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newVersionedStore(db *sqlx.DB) versioned.Store {
	return sqlxrepos.NewVersionedStore(db)
}

func newUserRepository(db *sqlx.DB) user.Repository {
	return sqlxrepos.NewUserRepository(db)
}

func newRightsService(store versioned.Store, bus *events.Bus) *rights.Service {
	return rights.NewService(store, bus)
}

func newStatsService(db *sqlx.DB, jobs *tasks.Manager, logger core.Logger) *stats.Service {
	return stats.NewService(boiledrepos.NewStatsRepository(db), jobs, logger)
}

func newExplorationService(
	store versioned.Store,
	bus *events.Bus,
	rgts *rights.Service,
	statsSvc *stats.Service,
	logger core.Logger,
) *exploration.Service {
	return exploration.NewService(store, bus, rgts, statsSvc, logger)
}

func newAdventureService(
	store versioned.Store,
	bus *events.Bus,
	rgts *rights.Service,
	explorations *exploration.Service,
	logger core.Logger,
) *adventure.Service {
	return adventure.NewService(store, bus, rgts, explorations, logger)
}

// newCommitLogService also subscribes the commit log writer to the bus.
func newCommitLogService(
	db *sqlx.DB,
	conf *core.Config,
	bus *events.Bus,
	rgts *rights.Service,
	users *user.Service,
	logger core.Logger,
) *commitlog.Service {
	repo := sqlxrepos.NewCommitLogRepository(db)
	commitlog.NewWriter(repo, rgts, users, logger).Subscribe(bus)
	return commitlog.NewService(repo, conf)
}

// newSummaryService also subscribes the summary projector to the bus.
func newSummaryService(
	db *sqlx.DB,
	conf *core.Config,
	bus *events.Bus,
	rgts *rights.Service,
	explorations *exploration.Service,
	adventures *adventure.Service,
	logger core.Logger,
) *summary.Service {
	repo := boiledrepos.NewSummaryRepository(db)
	projector := summary.NewProjector(repo, rgts, logger)
	projector.RegisterSource(activity.TypeExploration, explorations)
	projector.RegisterSource(activity.TypeAdventure, adventures)
	projector.Subscribe(bus)
	return summary.NewService(repo, conf)
}

func newFeedbackService(db *sqlx.DB, bus *events.Bus, logger core.Logger) *feedback.Service {
	return feedback.NewService(sqlxrepos.NewFeedbackRepository(db), bus, logger)
}

func newFeedService(
	db *sqlx.DB,
	conf *core.Config,
	bus *events.Bus,
	jobs *tasks.Manager,
	commits *commitlog.Service,
	threads *feedback.Service,
	rgts *rights.Service,
	explorations *exploration.Service,
	adventures *adventure.Service,
	logger core.Logger,
) *feed.Service {
	svc := feed.NewService(sqlxrepos.NewFeedRepository(db), feed.Deps{
		Commits: commits,
		Threads: threads,
		Rights:  rgts,
		Sources: map[activity.Type]summary.Source{
			activity.TypeExploration: explorations,
			activity.TypeAdventure:   adventures,
		},
		Listers: map[activity.Type]feed.ActivityLister{
			activity.TypeExploration: explorations,
			activity.TypeAdventure:   adventures,
		},
	}, jobs, conf, logger)
	svc.Subscribe(bus)
	return svc
}

func newNotificationService(
	db *sqlx.DB,
	conf *core.Config,
	mailer core.EmailService,
	jobs *tasks.Manager,
	logger core.Logger,
) *notification.Service {
	return notification.NewService(sqlxrepos.NewNotificationRepository(db), mailer, jobs, conf, logger)
}

type ServerParams struct {
	dig.In

	Conf            *core.Config
	Logger          core.Logger
	Validate        *validator.Validate
	Translator      ut.Translator
	UserSvc         *user.Service
	PasswordReset   *user.PasswordResetter
	RightsSvc       *rights.Service
	ExplorationSvc  *exploration.Service
	AdventureSvc    *adventure.Service
	CommitSvc       *commitlog.Service
	SummarySvc      *summary.Service
	StatsSvc        *stats.Service
	FeedbackSvc     *feedback.Service
	FeedSvc         *feed.Service
	NotificationSvc *notification.Service
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(p.Conf, p.Logger, echoapi.Deps{
		Validate:        p.Validate,
		Translator:      p.Translator,
		UserSvc:         p.UserSvc,
		PasswordReset:   p.PasswordReset,
		RightsSvc:       p.RightsSvc,
		ExplorationSvc:  p.ExplorationSvc,
		AdventureSvc:    p.AdventureSvc,
		CommitSvc:       p.CommitSvc,
		SummarySvc:      p.SummarySvc,
		StatsSvc:        p.StatsSvc,
		FeedbackSvc:     p.FeedbackSvc,
		FeedSvc:         p.FeedSvc,
		NotificationSvc: p.NotificationSvc,
	})
}

// NewRegistry registers the handler of every background job type.
func NewRegistry(statsSvc *stats.Service, feedSvc *feed.Service, notifications *notification.Service) (*tasks.Registry, error) {
	registry := tasks.NewRegistry()
	handlers := []tasks.Handler{
		statsSvc.RecomputeJob(),
		feedSvc.RecentUpdatesJob(),
		feedSvc.SubscriptionsOneOffJob(),
		notifications.SenderJob(),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func newWorker(queue tasks.Queue, registry *tasks.Registry, conf *core.Config, loggerParam JobsLoggerParam) *tasks.Worker {
	return tasks.NewWorker(queue, registry, conf, loggerParam.Logger)
}

// New returns a new dependency injection dig.Container.
// The database is migrated up on first use when migrate is set.
func New(migrate bool) *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newJobsLogger, dig.Name("jobsLogger")))
	must(c.Provide(dbProvider(migrate)))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))

	must(c.Provide(events.NewBus))
	must(c.Provide(newTaskQueue))
	must(c.Provide(tasks.NewManager))
	must(c.Provide(newVersionedStore))
	must(c.Provide(newUserRepository))

	must(c.Provide(user.NewService))
	must(c.Provide(user.NewPasswordResetter))
	must(c.Provide(newRightsService))
	must(c.Provide(newStatsService))
	must(c.Provide(newExplorationService))
	must(c.Provide(newAdventureService))
	must(c.Provide(newCommitLogService))
	must(c.Provide(newSummaryService))
	must(c.Provide(newFeedbackService))
	must(c.Provide(newFeedService))
	must(c.Provide(newNotificationService))

	must(c.Provide(newServer))
	must(c.Provide(NewRegistry))
	must(c.Provide(newWorker))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

// Package bootstrap assembles the penalty engine from configuration. The API
// server and the operator CLI share it.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/events"
	"github.com/bookwell/penalty-service/internal/observability"
	"github.com/bookwell/penalty-service/internal/persistence"
	"github.com/bookwell/penalty-service/internal/repository"
	"github.com/bookwell/penalty-service/internal/repository/memory"
	"github.com/bookwell/penalty-service/internal/service"
)

// Stores groups the repositories of one backing store.
type Stores struct {
	Tx           repository.TxManager
	Accounts     repository.AccountRepository
	Types        repository.ViolationTypeRepository
	Violations   repository.ViolationRepository
	Adjustments  repository.AdjustmentRepository
	Appointments repository.AppointmentRepository
	Ratings      repository.RatingRepository
	Certificates repository.CertificateRepository
}

// PostgresStores wires every repository to the pool.
func PostgresStores(pg *persistence.Postgres) Stores {
	pool := pg.PoolHandle()
	return Stores{
		Tx:           repository.NewTxManager(pool),
		Accounts:     repository.NewAccountRepository(pool),
		Types:        repository.NewViolationTypeRepository(pool),
		Violations:   repository.NewViolationRepository(pool),
		Adjustments:  repository.NewAdjustmentRepository(pool),
		Appointments: repository.NewAppointmentRepository(pool),
		Ratings:      repository.NewRatingRepository(pool),
		Certificates: repository.NewCertificateRepository(pool),
	}
}

// MemoryStores wires every repository to an in-process store.
func MemoryStores(store *memory.Store) Stores {
	return Stores{
		Tx:           store,
		Accounts:     store.Accounts(),
		Types:        store.ViolationTypes(),
		Violations:   store.Violations(),
		Adjustments:  store.Adjustments(),
		Appointments: store.Appointments(),
		Ratings:      store.Ratings(),
		Certificates: store.Certificates(),
	}
}

// Container holds the assembled services.
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Postgres      *persistence.Postgres
	Redis         *persistence.Redis
	Dispatcher    events.Dispatcher
	Stores        Stores
	Penalty       *service.PenaltyService
	Detection     *service.DetectionService
	Appeals       *service.AppealService
	Access        *service.AccessService
	Resets        *service.ResetService
	Catalog       *service.CatalogService
	Certificates  *service.CertificateService
	Hooks         *service.HookRunner
	Notifications *service.NotificationService
}

// Build connects the backing stores and assembles every service. Without a
// Postgres DSN an in-memory store seeded with the default catalog is used.
// Close releases the connections.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var stores Stores
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		stores = PostgresStores(pg)
	} else {
		stores = MemoryStores(memory.New())
	}

	rds := persistence.NewRedis(cfg.Redis, logger)

	c := Assemble(cfg, logger, metrics, stores, guardFor(rds))
	c.Postgres = pg
	c.Redis = rds

	if !pg.Enabled() {
		if _, err := c.Catalog.Seed(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("seed catalog: %w", err)
		}
	}
	return c, nil
}

// Assemble builds the services on top of already-open stores.
func Assemble(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics, stores Stores, guard service.IdempotencyGuard) *Container {
	dispatcher := events.NewInMemoryDispatcher(logger)

	penalty := service.NewPenaltyService(service.PenaltyDependencies{
		TxManager:       stores.Tx,
		AccountRepo:     stores.Accounts,
		TypeRepo:        stores.Types,
		ViolationRepo:   stores.Violations,
		AdjustmentRepo:  stores.Adjustments,
		AppointmentRepo: stores.Appointments,
		RatingRepo:      stores.Ratings,
		Dispatcher:      dispatcher,
		Metrics:         metrics,
		Logger:          logger,
		Config:          cfg.Penalty,
	})
	detection := service.NewDetectionService(service.DetectionDependencies{
		Penalty:         penalty,
		AppointmentRepo: stores.Appointments,
		RatingRepo:      stores.Ratings,
		Guard:           guard,
		Metrics:         metrics,
		Logger:          logger,
		Config:          cfg.Penalty,
	})

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	return &Container{
		Config:        cfg,
		Logger:        logger,
		Metrics:       metrics,
		Dispatcher:    dispatcher,
		Stores:        stores,
		Penalty:       penalty,
		Detection:     detection,
		Appeals:       service.NewAppealService(penalty, stores.Violations, logger),
		Access:        service.NewAccessService(stores.Accounts, stores.Appointments),
		Resets:        service.NewResetService(penalty, cfg.Penalty.ResetConcurrency),
		Catalog:       service.NewCatalogService(stores.Types, logger),
		Certificates:  service.NewCertificateService(penalty, stores.Certificates, cfg.Scheduler.CertificateReminderDays),
		Hooks:         service.NewHookRunner(penalty, detection, metrics, logger),
		Notifications: notifications,
	}
}

// Close releases the store connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}

func guardFor(rds *persistence.Redis) service.IdempotencyGuard {
	if rds == nil {
		return service.NewMemoryGuard()
	}
	return service.NewRedisGuard(rds.Client)
}

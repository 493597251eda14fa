package services

import (
	"os"
	"time"

	"github.com/preceptly/backend/internal/domain/catalog"
	"github.com/preceptly/backend/internal/domain/ports"
	"github.com/preceptly/backend/internal/infrastructure/collaborators"
	"github.com/preceptly/backend/internal/infrastructure/database"
	"github.com/preceptly/backend/internal/infrastructure/persistence"
	"github.com/preceptly/backend/pkg/constants"
	"github.com/preceptly/backend/pkg/expression"
	"github.com/preceptly/backend/pkg/logger"
)

// ServiceManager wires all services with dependency injection
type ServiceManager struct {
	db *database.MySQLConnection

	TxManager  *persistence.TransactionManager
	EventBus   *EventBus
	Catalog    *catalog.Catalog
	Store      ports.SessionStore
	Validation *ValidationService
	Analytics  *AnalyticsService
	Onboarding *OnboardingService
	Finalizer  *FinalizerService
	Reaper     *ReaperService
}

// NewServiceManager creates a service manager with all dependencies wired
// against MySQL.
func NewServiceManager(db *database.MySQLConnection, log *logger.Logger) *ServiceManager {
	sm := &ServiceManager{db: db}

	sm.TxManager = persistence.NewTransactionManager(db)
	sm.EventBus = NewEventBus(log)
	sm.Catalog = catalog.New(expression.NewEngine())
	sm.Store = persistence.NewSessionRepository(db, sm.TxManager, sessionTTL(), log)

	sink := persistence.NewAnalyticsRepository(db)
	sm.Analytics = NewAnalyticsService(sm.EventBus, sink, log)
	sm.Validation = NewValidationService(log)
	sm.Onboarding = NewOnboardingService(sm.Store, sm.Catalog, sm.Validation, sm.Analytics, log)

	provisioner := collaborators.NewDirectoryProvisioner(db, log)
	seats := collaborators.NewBillingSeatAssigner(billingBaseURL(), log)
	sm.Finalizer = NewFinalizerService(sm.Store, sm.Catalog, provisioner, seats, sm.Analytics, sm.EventBus, log)

	sm.Reaper = NewReaperService(sm.Store, reaperSchedule(), log)

	return sm
}

// StartReaper begins the background expiry sweeps. Call during startup.
func (sm *ServiceManager) StartReaper() error {
	return sm.Reaper.Start()
}

// StopReaper halts the sweeps gracefully. Call during shutdown.
func (sm *ServiceManager) StopReaper() {
	sm.Reaper.Stop()
}

func sessionTTL() time.Duration {
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		if ttl, err := time.ParseDuration(raw); err == nil && ttl > 0 {
			return ttl
		}
	}
	return constants.DefaultSessionTTL
}

func reaperSchedule() string {
	if schedule := os.Getenv("REAPER_SCHEDULE"); schedule != "" {
		return schedule
	}
	return constants.DefaultReaperSchedule
}

func billingBaseURL() string {
	if url := os.Getenv("BILLING_URL"); url != "" {
		return url
	}
	return "http://localhost:3010"
}

package testfixtures

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/example/smarthome-admin/internal/application"
	"github.com/example/smarthome-admin/internal/docstore"
	"github.com/example/smarthome-admin/internal/persistence"
)

// ServiceFactory assists tests with constructing application services over an
// in-memory document store using deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Store       *docstore.Memory
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Store == nil {
		factory.Store = docstore.NewMemory(factory.Clock.NowFunc())
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithStore overrides the document store used by the factory.
func WithStore(store *docstore.Memory) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Store = store
	}
}

// PostureRepository returns a posture repository over the factory store.
func (f *ServiceFactory) PostureRepository() *persistence.DocumentPostureRepository {
	return persistence.NewDocumentPostureRepository(f.Store)
}

// EventRepository returns an event repository over the factory store.
func (f *ServiceFactory) EventRepository() *persistence.DocumentEventRepository {
	return persistence.NewDocumentEventRepository(f.Store)
}

// ActivityLog returns an activity log repository over the factory store.
func (f *ServiceFactory) ActivityLog() *persistence.DocumentActivityLogRepository {
	return persistence.NewDocumentActivityLogRepository(f.Store)
}

// Notifications returns a notification repository over the factory store.
func (f *ServiceFactory) Notifications() *persistence.DocumentNotificationRepository {
	return persistence.NewDocumentNotificationRepository(f.Store)
}

// NewSecurityService builds a security service wired to the factory store.
func (f *ServiceFactory) NewSecurityService(logger *slog.Logger) *application.SecurityService {
	return application.NewSecurityServiceWithLogger(
		f.PostureRepository(),
		f.ActivityLog(),
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		logger,
	)
}

// NewSimulationService builds a simulation service wired to the factory
// store. Close is registered on the test's cleanup list.
func (f *ServiceFactory) NewSimulationService(t *testing.T, cfg application.SimulationServiceConfig) *application.SimulationService {
	t.Helper()
	svc := application.NewSimulationService(
		f.EventRepository(),
		f.Notifications(),
		f.ActivityLog(),
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		cfg,
	)
	t.Cleanup(svc.Close)
	return svc
}

// SeedPosture stores the posture fixture in the factory store.
func (f *ServiceFactory) SeedPosture(t *testing.T, fixture PostureFixture) persistence.SecurityPosture {
	t.Helper()
	posture, err := f.PostureRepository().CreatePosture(context.Background(), fixture.Persistence())
	if err != nil {
		t.Fatalf("failed to seed posture: %v", err)
	}
	return posture
}

// SeedEvent stores the event fixture in the factory store.
func (f *ServiceFactory) SeedEvent(t *testing.T, fixture EventFixture) persistence.SimulatedEvent {
	t.Helper()
	event, err := f.EventRepository().CreateEvent(context.Background(), fixture.Persistence())
	if err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}
	return event
}

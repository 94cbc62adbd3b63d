package testfixtures

import (
	"log/slog"
	"time"

	"github.com/Lowii-3dy/campus-sched/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
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

// ScheduleServiceDeps captures dependencies for constructing a schedule service.
type ScheduleServiceDeps struct {
	Schedules   application.ScheduleRepository
	Facilities  *application.FacilityCache
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewScheduleService builds a schedule service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewScheduleService(deps ScheduleServiceDeps) *application.ScheduleService {
	return application.NewScheduleServiceWithLogger(
		deps.Schedules,
		deps.Facilities,
		f.idGenerator(deps.IDGenerator),
		f.now(deps.Now),
		deps.Logger,
	)
}

// NewEventService builds an event service. Unset identifier and clock
// functions fall back to the factory.
func (f *ServiceFactory) NewEventService(cfg application.EventServiceConfig) *application.EventService {
	cfg.IDGenerator = f.idGenerator(cfg.IDGenerator)
	cfg.Now = f.now(cfg.Now)
	return application.NewEventService(cfg)
}

// NewApprovalService builds an approval service with the factory defaults.
func (f *ServiceFactory) NewApprovalService(cfg application.ApprovalServiceConfig) *application.ApprovalService {
	cfg.IDGenerator = f.idGenerator(cfg.IDGenerator)
	cfg.Now = f.now(cfg.Now)
	return application.NewApprovalService(cfg)
}

// NotificationServiceDeps captures dependencies for constructing a
// notification service.
type NotificationServiceDeps struct {
	Notifications application.NotificationRepository
	Now           func() time.Time
	Logger        *slog.Logger
}

// NewNotificationService builds a notification service.
func (f *ServiceFactory) NewNotificationService(deps NotificationServiceDeps) *application.NotificationService {
	return application.NewNotificationService(deps.Notifications, f.now(deps.Now), deps.Logger)
}

func (f *ServiceFactory) idGenerator(override func() string) func() string {
	if override != nil {
		return override
	}
	return f.IDGenerator.NextFunc()
}

func (f *ServiceFactory) now(override func() time.Time) func() time.Time {
	if override != nil {
		return override
	}
	return f.Clock.NowFunc()
}

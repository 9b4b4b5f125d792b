package application

import (
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/pkg/eventbus"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/eventstore/projector"
)

// Application aggregates everything a module can register: projection
// handlers, services, HTTP controllers, and schema migrations.
type Application interface {
	DB() *pgxpool.Pool
	Logger() *logrus.Logger
	EventPublisher() eventbus.EventBusWithError
	EventStore() *eventstore.Store
	Projections() *projector.Registry
	Migrations() *MigrationManager

	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}

	RegisterControllers(controllers ...Controller)
	Controllers() []Controller
}

// Module is one entity family wired into the application at boot.
type Module interface {
	Name() string
	Register(app Application) error
}

// Controller mounts routes on the admin/observability router.
type Controller interface {
	Register(r *mux.Router)
}

type ApplicationOptions struct {
	Pool         *pgxpool.Pool
	Logger       *logrus.Logger
	EventBus     eventbus.EventBusWithError
	StoreOptions []eventstore.Option
}

func New(opts *ApplicationOptions) Application {
	registry := projector.NewRegistry()
	// Triage audit events carry no projection of their own.
	registry.Register(projector.Nop(eventstore.StreamTypeAdmin))
	migrations := NewMigrationManager()
	// The event log underpins every module's projections, so its schema
	// always applies first.
	migrations.RegisterSchema(eventstore.Schema())
	return &application{
		pool:        opts.Pool,
		logger:      opts.Logger,
		bus:         opts.EventBus,
		store:       eventstore.New(projector.NewRouter(registry, opts.Logger), opts.Logger, opts.StoreOptions...),
		projections: registry,
		migrations:  migrations,
		services:    make(map[reflect.Type]interface{}),
	}
}

type application struct {
	pool        *pgxpool.Pool
	logger      *logrus.Logger
	bus         eventbus.EventBusWithError
	store       *eventstore.Store
	projections *projector.Registry
	migrations  *MigrationManager
	services    map[reflect.Type]interface{}
	controllers []Controller
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

func (app *application) EventPublisher() eventbus.EventBusWithError {
	return app.bus
}

func (app *application) EventStore() *eventstore.Store {
	return app.store
}

func (app *application) Projections() *projector.Registry {
	return app.projections
}

func (app *application) Migrations() *MigrationManager {
	return app.migrations
}

// RegisterServices registers services keyed by their concrete type.
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		app.services[reflect.TypeOf(service).Elem()] = service
	}
}

// Service looks a service up by example value, e.g.
// app.Service(services.RoleService{}).(*services.RoleService).
func (app *application) Service(service interface{}) interface{} {
	svc, ok := app.services[reflect.TypeOf(service)]
	if !ok {
		panic("service not found: " + reflect.TypeOf(service).String())
	}
	return svc
}

func (app *application) RegisterControllers(controllers ...Controller) {
	app.controllers = append(app.controllers, controllers...)
}

func (app *application) Controllers() []Controller {
	return app.controllers
}

// LoadModules registers each module in order; order matters only for
// migration application.
func LoadModules(app Application, modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(app); err != nil {
			return err
		}
	}
	return nil
}

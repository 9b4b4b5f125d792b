package access

import (
	"embed"

	"github.com/solumhq/casedesk/modules/access/domain/events"
	"github.com/solumhq/casedesk/modules/access/handlers"
	"github.com/solumhq/casedesk/modules/access/infrastructure/persistence"
	"github.com/solumhq/casedesk/modules/access/services"
	coreevents "github.com/solumhq/casedesk/modules/core/domain/events"
	corepersistence "github.com/solumhq/casedesk/modules/core/infrastructure/persistence"
	coreservices "github.com/solumhq/casedesk/modules/core/services"
	orgevents "github.com/solumhq/casedesk/modules/org/domain/events"
	orgpersistence "github.com/solumhq/casedesk/modules/org/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/access-schema.sql
var migrationFiles embed.FS

// Module wires access grants and impersonation. Register after core: the
// accessible-orgs hook attaches to the role assignment stream, and grant
// scopes feed the aggregated authority query.
type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "access"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	app.Projections().Register(handlers.NewGrantHandler())
	app.Projections().Register(handlers.NewImpersonationHandler())

	hook := handlers.NewAccessibleOrgsHook()
	app.Projections().RegisterSyncHook(events.StreamTypeAccessGrant, hook)
	app.Projections().RegisterSyncHook(coreevents.StreamTypeAssignment, hook)
	// Tree changes (new descendants, soft deletes) move orgs in and out of
	// scopes users already hold. Units do not feed the list, so the unit
	// stream needs no hook.
	app.Projections().RegisterSyncHook(orgevents.StreamTypeOrganization, hook)

	grantRepo := persistence.NewGrantRepository()
	userRepo := app.Service(corepersistence.UserRepository{}).(*corepersistence.UserRepository)
	authzQuery := app.Service(coreservices.AuthzQueryService{}).(*coreservices.AuthzQueryService)
	orgRepo := app.Service(orgpersistence.OrgRepository{}).(*orgpersistence.OrgRepository)

	authzQuery.AddScopeSource(grantRepo)

	app.RegisterServices(
		grantRepo,
		services.NewAccessService(app.EventStore(), grantRepo, userRepo, authzQuery, orgRepo, app.Logger()),
		services.NewImpersonationService(app.EventStore(), grantRepo, userRepo, app.Logger()),
	)
	return nil
}

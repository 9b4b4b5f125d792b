package onboarding

import (
	"embed"

	corepersistence "github.com/solumhq/casedesk/modules/core/infrastructure/persistence"
	coreservices "github.com/solumhq/casedesk/modules/core/services"
	"github.com/solumhq/casedesk/modules/onboarding/handlers"
	"github.com/solumhq/casedesk/modules/onboarding/infrastructure/persistence"
	"github.com/solumhq/casedesk/modules/onboarding/services"
	orgpersistence "github.com/solumhq/casedesk/modules/org/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/onboarding-schema.sql
var migrationFiles embed.FS

// Module wires invitations. Register after org and core: invitations
// delegate roles into organization scopes.
type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "onboarding"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	app.Projections().Register(handlers.NewInvitationHandler())

	invitationRepo := persistence.NewInvitationRepository()
	roleRepo := app.Service(corepersistence.RoleRepository{}).(*corepersistence.RoleRepository)
	authzQuery := app.Service(coreservices.AuthzQueryService{}).(*coreservices.AuthzQueryService)
	orgRepo := app.Service(orgpersistence.OrgRepository{}).(*orgpersistence.OrgRepository)

	app.RegisterServices(
		invitationRepo,
		services.NewInvitationService(app.EventStore(), invitationRepo, roleRepo, authzQuery, orgRepo, app.Logger()),
	)
	return nil
}

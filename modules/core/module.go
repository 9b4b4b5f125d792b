package core

import (
	"embed"

	"github.com/solumhq/casedesk/modules/core/handlers"
	"github.com/solumhq/casedesk/modules/core/infrastructure/persistence"
	"github.com/solumhq/casedesk/modules/core/services"
	orgpersistence "github.com/solumhq/casedesk/modules/org/infrastructure/persistence"
	"github.com/solumhq/casedesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/core-schema.sql
var migrationFiles embed.FS

// Module wires users, roles, permissions, and role assignments. It must be
// registered after the org module: assignment scopes resolve against the
// organization tree.
type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "core"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	app.Projections().Register(handlers.NewUserHandler())
	app.Projections().Register(handlers.NewRoleHandler())
	app.Projections().Register(handlers.NewAssignmentHandler())

	userRepo := persistence.NewUserRepository()
	roleRepo := persistence.NewRoleRepository()
	authzQuery := services.NewAuthzQueryService()
	orgRepo := app.Service(orgpersistence.OrgRepository{}).(*orgpersistence.OrgRepository)

	app.RegisterServices(
		userRepo,
		roleRepo,
		authzQuery,
		services.NewUserService(app.EventStore(), userRepo, app.Logger()),
		services.NewRoleService(app.EventStore(), roleRepo, authzQuery, app.Logger()),
		services.NewAssignmentService(app.EventStore(), userRepo, roleRepo, authzQuery, orgRepo, app.Logger()),
	)
	return nil
}

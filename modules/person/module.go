package person

import (
	"embed"

	"github.com/solumhq/casedesk/modules/person/handlers"
	"github.com/solumhq/casedesk/modules/person/infrastructure/persistence"
	"github.com/solumhq/casedesk/modules/person/services"
	"github.com/solumhq/casedesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/person-schema.sql
var migrationFiles embed.FS

type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "person"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	app.Projections().Register(handlers.NewContactHandler())
	app.Projections().RegisterLinkHandler(handlers.NewLinkHandler())

	contactRepo := persistence.NewContactRepository()
	app.RegisterServices(
		contactRepo,
		services.NewContactService(app.EventStore(), contactRepo, app.Logger()),
	)
	return nil
}

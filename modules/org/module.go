package org

import (
	"embed"

	"github.com/solumhq/casedesk/modules/org/handlers"
	"github.com/solumhq/casedesk/modules/org/infrastructure/persistence"
	"github.com/solumhq/casedesk/modules/org/services"
	"github.com/solumhq/casedesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/org-schema.sql
var migrationFiles embed.FS

type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "org"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	app.Projections().Register(handlers.NewOrganizationHandler())
	app.Projections().Register(handlers.NewUnitHandler())

	orgRepo := persistence.NewOrgRepository()
	app.RegisterServices(
		orgRepo,
		services.NewOrgService(app.EventStore(), orgRepo, app.Logger()),
	)
	return nil
}

package workflow

import (
	"embed"

	"github.com/solumhq/casedesk/modules/workflow/handlers"
	"github.com/solumhq/casedesk/modules/workflow/infrastructure/persistence"
	"github.com/solumhq/casedesk/modules/workflow/services"
	"github.com/solumhq/casedesk/pkg/application"
)

//go:embed infrastructure/persistence/schema/workflow-schema.sql
var migrationFiles embed.FS

// Module wires workflow bootstrap tracking and the dispatch queue the relay
// drains toward the external engine.
type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "workflow"
}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	app.Projections().Register(handlers.NewWorkflowHandler())
	app.Projections().Register(handlers.NewQueueHandler())

	queueRepo := persistence.NewQueueRepository()
	app.RegisterServices(
		queueRepo,
		services.NewWorkflowService(app.EventStore(), queueRepo, app.EventPublisher(), app.Logger()),
		services.NewQueueService(app.EventStore(), queueRepo, app.Logger()),
	)
	return nil
}

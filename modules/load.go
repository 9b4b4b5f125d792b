package modules

import (
	"github.com/solumhq/casedesk/modules/access"
	"github.com/solumhq/casedesk/modules/core"
	"github.com/solumhq/casedesk/modules/onboarding"
	"github.com/solumhq/casedesk/modules/org"
	"github.com/solumhq/casedesk/modules/person"
	"github.com/solumhq/casedesk/modules/workflow"
	"github.com/solumhq/casedesk/pkg/application"
)

// BuiltInModules lists every module in registration order. Order matters:
// core resolves org's repositories at register time, onboarding and access
// resolve core's, and migrations apply in this sequence.
var BuiltInModules = []application.Module{
	org.NewModule(),
	core.NewModule(),
	person.NewModule(),
	onboarding.NewModule(),
	access.NewModule(),
	workflow.NewModule(),
}

func Load(app application.Application, modules ...application.Module) error {
	return application.LoadModules(app, modules...)
}

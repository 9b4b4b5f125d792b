package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solumhq/casedesk/modules"
	workflowservices "github.com/solumhq/casedesk/modules/workflow/services"
	"github.com/solumhq/casedesk/pkg/application"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/configuration"
	"github.com/solumhq/casedesk/pkg/eventbus"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/outbox"
	enginedispatcher "github.com/solumhq/casedesk/pkg/outbox/dispatchers/engine"
	eventbusdispatcher "github.com/solumhq/casedesk/pkg/outbox/dispatchers/eventbus"
)

// The relay drains the workflow dispatch queue toward the external engine.
// It normally runs inside the server process; this binary exists for
// deployments that want dispatch isolated from request serving, and for
// one-shot drains in scripts via -once.
func main() {
	once := flag.Bool("once", false, "process one batch and exit")
	flag.Parse()

	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()
	relayLog := logger.WithField("component", "workflow-relay")

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelBoot()
	pool, err := pgxpool.New(bootCtx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		Logger:   logger,
		EventBus: eventbus.NewEventPublisher(logger),
		StoreOptions: []eventstore.Option{
			eventstore.WithMaxRetries(conf.EventStore.AppendMaxRetries),
		},
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	var dispatcher outbox.Dispatcher
	if conf.Workflow.EngineBaseURL != "" {
		opts := []enginedispatcher.Option{}
		if conf.Workflow.EngineToken != "" {
			opts = append(opts, enginedispatcher.WithBearerToken(conf.Workflow.EngineToken))
		}
		dispatcher = enginedispatcher.New(conf.Workflow.EngineBaseURL, opts...)
	} else {
		relayLog.Warn("WORKFLOW_ENGINE_BASE_URL is empty, dispatching to the in-process bus")
		dispatcher = eventbusdispatcher.New(app.EventPublisher())
	}

	queue := app.Service(workflowservices.QueueService{}).(*workflowservices.QueueService)
	relay, err := outbox.NewRelay(pool, queue, dispatcher, outbox.RelayOptions{
		PollInterval:    conf.Workflow.RelayPollInterval,
		BatchSize:       conf.Workflow.RelayBatchSize,
		SingleActive:    conf.Workflow.RelaySingleActive,
		DispatchTimeout: conf.Workflow.RelayDispatchTimeout,
		LastErrorMaxLen: conf.Workflow.LastErrorMaxBytes,
		Logger:          relayLog,
	})
	if err != nil {
		log.Fatalf("failed to create relay: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = composables.WithPool(ctx, pool)

	if *once {
		if err := relay.RunOnce(ctx); err != nil {
			log.Fatalf("relay batch failed: %v", err)
		}
		return
	}

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("relay stopped: %v", err)
	}
}

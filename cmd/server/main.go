package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/modules"
	workflowservices "github.com/solumhq/casedesk/modules/workflow/services"
	"github.com/solumhq/casedesk/pkg/application"
	"github.com/solumhq/casedesk/pkg/composables"
	"github.com/solumhq/casedesk/pkg/configuration"
	"github.com/solumhq/casedesk/pkg/eventbus"
	"github.com/solumhq/casedesk/pkg/eventstore"
	"github.com/solumhq/casedesk/pkg/httpapi"
	"github.com/solumhq/casedesk/pkg/metrics"
	"github.com/solumhq/casedesk/pkg/outbox"
	enginedispatcher "github.com/solumhq/casedesk/pkg/outbox/dispatchers/engine"
	eventbusdispatcher "github.com/solumhq/casedesk/pkg/outbox/dispatchers/eventbus"
)

func main() {
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
	if err := app.Migrations().Apply(bootCtx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}

	app.RegisterControllers(
		httpapi.NewAdminController(app.EventStore(), eventstore.NewAdminService(app.EventStore(), logger), logger),
	)
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Workflow.RelayEnabled {
		startRelayBackground(ctx, conf, pool, logger, app)
	}

	router := mux.NewRouter()
	for _, c := range app.Controllers() {
		c.Register(router)
	}

	server := &http.Server{
		Addr:         conf.SocketAddress,
		Handler:      withPool(pool, router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s\n", conf.SocketAddress)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

// withPool attaches the connection pool to every request context so the
// repositories' transaction helpers can reach the database.
func withPool(pool *pgxpool.Pool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(composables.WithPool(r.Context(), pool)))
	})
}

func startRelayBackground(
	ctx context.Context,
	conf *configuration.Configuration,
	pool *pgxpool.Pool,
	logger *logrus.Logger,
	app application.Application,
) {
	relayLog := logger.WithField("component", "workflow-relay")

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
		relayLog.WithError(err).Warn("relay not started")
		return
	}

	go func() {
		if err := relay.Run(composables.WithPool(ctx, pool)); err != nil && !errors.Is(err, context.Canceled) {
			relayLog.WithError(err).Error("relay stopped")
		}
	}()
}

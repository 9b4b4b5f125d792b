package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/solumhq/casedesk/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"casedesk"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type EventStoreOptions struct {
	// AppendMaxRetries bounds the optimistic-concurrency retry loop on
	// stream version collisions.
	AppendMaxRetries int `env:"EVENTSTORE_APPEND_MAX_RETRIES" envDefault:"5"`
}

func (o *EventStoreOptions) Validate() error {
	if o.AppendMaxRetries < 1 {
		return fmt.Errorf("EVENTSTORE_APPEND_MAX_RETRIES must be >= 1, got %d", o.AppendMaxRetries)
	}
	return nil
}

type WorkflowOptions struct {
	RelayEnabled         bool          `env:"WORKFLOW_RELAY_ENABLED" envDefault:"true"`
	RelayPollInterval    time.Duration `env:"WORKFLOW_RELAY_POLL_INTERVAL" envDefault:"1s"`
	RelayBatchSize       int           `env:"WORKFLOW_RELAY_BATCH_SIZE" envDefault:"100"`
	RelaySingleActive    bool          `env:"WORKFLOW_RELAY_SINGLE_ACTIVE" envDefault:"true"`
	RelayDispatchTimeout time.Duration `env:"WORKFLOW_RELAY_DISPATCH_TIMEOUT" envDefault:"30s"`
	LastErrorMaxBytes    int           `env:"WORKFLOW_LAST_ERROR_MAX_BYTES" envDefault:"2048"`

	// EngineBaseURL is the external workflow engine the relay dispatches to.
	// Empty keeps dispatch on the in-process bus, which is only useful in
	// development.
	EngineBaseURL string `env:"WORKFLOW_ENGINE_BASE_URL" envDefault:""`
	EngineToken   string `env:"WORKFLOW_ENGINE_TOKEN" envDefault:""`
}

type Configuration struct {
	Database   DatabaseOptions
	Prometheus PrometheusOptions
	EventStore EventStoreOptions
	Workflow   WorkflowOptions

	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:""`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.EventStore.Validate(); err != nil {
		return fmt.Errorf("event store configuration error: %w", err)
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}

	return nil
}

func (c *Configuration) Unload() {
	if c.logFile != nil {
		_ = c.logFile.Close()
	}
}

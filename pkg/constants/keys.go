package constants

type ContextKey string

const (
	PoolKey   ContextKey = "pool"
	TxKey     ContextKey = "tx"
	TenantKey ContextKey = "tenant"
	UserKey   ContextKey = "user"
	LoggerKey ContextKey = "logger"
)

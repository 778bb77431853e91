package constants

type ContextKey string

const (
	PoolKey      ContextKey = "pool"
	TxKey        ContextKey = "tx"
	LoggerKey    ContextKey = "logger"
	TenantKey    ContextKey = "tenant"
	RequestStart ContextKey = "requestStart"
)

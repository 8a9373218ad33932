package config

const (
	EnvPrefix = "KHATABOOK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv     = "KHATABOOK_APP_ENV"
	EnvPort       = "KHATABOOK_APP_PORT"
	EnvDBDSN      = "KHATABOOK_DB_DSN"
	EnvDBHost     = "KHATABOOK_DB_HOST"
	EnvDBUser     = "KHATABOOK_DB_USER"
	EnvDBName     = "KHATABOOK_DB_NAME"
	EnvDBPassword = "KHATABOOK_DB_PASSWORD"
	EnvUseSQLite  = "KHATABOOK_USE_SQLITE"
	EnvRedisURL   = "KHATABOOK_REDIS_URL"
	EnvJWTSecret  = "KHATABOOK_JWT_SECRET"
	EnvJWTIssuer  = "KHATABOOK_JWT_ISSUER"
	EnvJWTExpMins = "KHATABOOK_JWT_EXPIRATION_MINUTES"

	EnvPubSubOrdersTopic   = "KHATABOOK_PUBSUB_ORDERS_TOPIC"
	EnvPubSubPaymentsTopic = "KHATABOOK_PUBSUB_PAYMENTS_TOPIC"
	EnvSettlementChangeTTL = "KHATABOOK_SETTLEMENT_CHANGE_REQUEST_TTL"
	EnvSettlementMaxChange = "KHATABOOK_SETTLEMENT_MAX_CHANGE_REQUESTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

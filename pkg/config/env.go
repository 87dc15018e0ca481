package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	LocalBackendRedis  = "redis"
	LocalBackendMemory = "memory"

	RemoteBackendPostgres  = "postgres"
	RemoteBackendFirestore = "firestore"
	RemoteBackendNone      = "none"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvCartTaxRate   = "STOREFRONT_CART_TAX_RATE"
	EnvLocalBackend  = "STOREFRONT_LOCAL_BACKEND"
	EnvRemoteBackend = "STOREFRONT_REMOTE_BACKEND"

	EnvGCPProjectID = "STOREFRONT_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	RelayDriverNone   = "none"
	RelayDriverPubSub = "pubsub"
	RelayDriverAMQP   = "amqp"

	EnvAppEnv       = "CASHSTORE_APP_ENV"
	EnvPort         = "CASHSTORE_APP_PORT"
	EnvDBDSN        = "CASHSTORE_DB_DSN"
	EnvDBHost       = "CASHSTORE_DB_HOST"
	EnvDBUser       = "CASHSTORE_DB_USER"
	EnvDBName       = "CASHSTORE_DB_NAME"
	EnvDBPassword   = "CASHSTORE_DB_PASSWORD"
	EnvUseSQLite    = "CASHSTORE_USE_SQLITE"
	EnvRedisURL     = "CASHSTORE_REDIS_URL"
	EnvGCPProjectID = "CASHSTORE_GCP_PROJECT_ID"
	EnvAMQPURL      = "CASHSTORE_AMQP_URL"
	EnvRelayDriver  = "CASHSTORE_RELAY_DRIVER"
	EnvWorkers      = "CASHSTORE_EVENTING_WORKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

const (
	EnvPrefix = "DROPSHIP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv           = "DROPSHIP_APP_ENV"
	EnvPort             = "DROPSHIP_APP_PORT"
	EnvDBDSN            = "DROPSHIP_DB_DSN"
	EnvDBHost           = "DROPSHIP_DB_HOST"
	EnvDBUser           = "DROPSHIP_DB_USER"
	EnvDBName           = "DROPSHIP_DB_NAME"
	EnvDBPassword       = "DROPSHIP_DB_PASSWORD"
	EnvDBDriver         = "DROPSHIP_DB_DRIVER"
	EnvRedisURL         = "DROPSHIP_REDIS_URL"
	EnvJWTSecret        = "DROPSHIP_JWT_SECRET"
	EnvJWTIssuer        = "DROPSHIP_JWT_ISSUER"
	EnvCourierTimezone  = "DROPSHIP_COURIER_TIMEZONE"
	EnvCourierDelivered = "DROPSHIP_COURIER_DELIVERED_CODES"
)

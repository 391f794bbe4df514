package config

const (
	EnvPrefix = "QUICKKART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "QUICKKART_APP_ENV"
	EnvPort     = "QUICKKART_APP_PORT"
	EnvLogLevel = "QUICKKART_LOG_LEVEL"

	EnvDBDSN  = "QUICKKART_DB_DSN"
	EnvDBHost = "QUICKKART_DB_HOST"
	EnvDBPort = "QUICKKART_DB_PORT"
	EnvDBUser = "QUICKKART_DB_USER"
	EnvDBPass = "QUICKKART_DB_PASSWORD"
	EnvDBName = "QUICKKART_DB_NAME"

	EnvRedisURL  = "QUICKKART_REDIS_URL"
	EnvJWTSecret = "QUICKKART_JWT_SECRET"

	EnvRazorpayKeyID     = "QUICKKART_RAZORPAY_KEY_ID"
	EnvRazorpayKeySecret = "QUICKKART_RAZORPAY_KEY_SECRET"

	EnvMapsETATimeout = "QUICKKART_GOOGLE_MAPS_ETA_TIMEOUT"
	EnvAdminEmails    = "QUICKKART_ADMIN_EMAILS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

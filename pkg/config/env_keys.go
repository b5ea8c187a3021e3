package config

// EnvPrefix is passed to envconfig; individual fields carry fully
// prefixed names so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv                 = "VILLAGELINK_APP_ENV"
	EnvPort                   = "VILLAGELINK_APP_PORT"
	EnvDBDSN                  = "VILLAGELINK_DB_DSN"
	EnvDBHost                 = "VILLAGELINK_DB_HOST"
	EnvDBUser                 = "VILLAGELINK_DB_USER"
	EnvDBName                 = "VILLAGELINK_DB_NAME"
	EnvRedisURL               = "VILLAGELINK_REDIS_URL"
	EnvJWTSecret              = "VILLAGELINK_JWT_SECRET"
	EnvJWTIssuer              = "VILLAGELINK_JWT_ISSUER"
	EnvJWTExpMins             = "VILLAGELINK_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "VILLAGELINK_REFRESH_TOKEN_TTL_MINUTES"
	EnvGCPProjectID           = "VILLAGELINK_GCP_PROJECT_ID"
	EnvPubSubMessageTopic     = "VILLAGELINK_PUBSUB_MESSAGE_TOPIC"
	EnvPubSubMessageSub       = "VILLAGELINK_PUBSUB_MESSAGE_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

// EnvPrefix scopes every envconfig lookup; individual fields carry the
// fully prefixed name in their tags, so the prefix itself stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "BULKQUOTE_DB_DSN"
	EnvDBHost = "BULKQUOTE_DB_HOST"
	EnvDBUser = "BULKQUOTE_DB_USER"
	EnvDBName = "BULKQUOTE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

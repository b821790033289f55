package config

// EnvPrefix is empty because every envconfig tag carries the full
// DONTFORGET_ variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "DONTFORGET_DB_DSN"
	EnvDBHost = "DONTFORGET_DB_HOST"
	EnvDBUser = "DONTFORGET_DB_USER"
	EnvDBName = "DONTFORGET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

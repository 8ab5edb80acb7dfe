package config

const (
	EnvPrefix = "VENTIA"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "VENTIA_DB_DSN"
	EnvDBHost = "VENTIA_DB_HOST"
	EnvDBUser = "VENTIA_DB_USER"
	EnvDBName = "VENTIA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

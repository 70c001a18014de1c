package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	AuthConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetUserAgent() string
}

type mainConfig struct {
	EnvVars
	API
	Auth
}

func New() Config {
	return mainConfig{}
}

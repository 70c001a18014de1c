package config

import (
	"strings"
	"time"
)

const (
	baseURLVar        = "CMS_BASE_URL"
	requestTimeoutVar = "CMS_REQUEST_TIMEOUT"
	userAgentVar      = "CMS_USER_AGENT"
)

type API struct{}

var _ APIConfig = API{}

// GetBaseURL returns the root of the CMS REST API (e.g., "https://cms.example.com/api")
func (API) GetBaseURL() string {
	return strings.TrimRight(GetEnv(baseURLVar, "http://localhost:8080/api"), "/")
}

func (API) GetRequestTimeout() time.Duration {
	return GetEnvDuration(requestTimeoutVar, 30*time.Second)
}

func (API) GetUserAgent() string {
	return GetEnv(userAgentVar, "go-cms-admin")
}

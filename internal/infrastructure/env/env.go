// Package env loads process configuration from .env files and the
// environment, and implements the credential seam. Credential values are
// read lazily and handed straight to the browser layer; they are never
// logged and never appear in traces.
package env

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/application/port/output"
)

const (
	usernameVar = "WAYFINDER_USERNAME"
	passwordVar = "WAYFINDER_PASSWORD"
	apiKeyVar   = "WAYFINDER_API_KEY"
	// Fallback for environments already configured for OpenRouter.
	apiKeyFallbackVar = "OPENROUTER_API_KEY"
)

var _ output.CredentialsPort = (*Service)(nil)

type Service struct {
	log *zap.Logger
}

// New loads .env then overlays .env.<APP_ENV> when present. Missing files
// are fine; real deployments configure the environment directly.
func New(log *zap.Logger) *Service {
	log = log.Named("env")

	if err := godotenv.Load(".env"); err != nil {
		log.Debug("no .env file found")
	}

	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}
	envFile := fmt.Sprintf(".env.%s", appEnv)
	if err := godotenv.Overload(envFile); err != nil {
		log.Debug("no environment overlay", zap.String("file", envFile))
	}
	log.Info("environment loaded", zap.String("app_env", appEnv))

	return &Service{log: log}
}

func (s *Service) Get(key string) string {
	return os.Getenv(key)
}

// MustGet returns the variable or aborts; for values the process cannot
// run without.
func (s *Service) MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		s.log.Fatal("required environment variable missing", zap.String("key", key))
	}
	return val
}

func (s *Service) GetBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func (s *Service) GetInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// APIKey returns the decision-model API key, preferring the app-specific
// variable over the provider one.
func (s *Service) APIKey() string {
	if key := os.Getenv(apiKeyVar); key != "" {
		return key
	}
	return os.Getenv(apiKeyFallbackVar)
}

// Credential resolves a login placeholder. The value is returned as-is;
// callers must not log it.
func (s *Service) Credential(kind string) (string, bool) {
	var v string
	switch kind {
	case output.CredentialUsername:
		v = os.Getenv(usernameVar)
	case output.CredentialPassword:
		v = os.Getenv(passwordVar)
	default:
		return "", false
	}
	if v == "" {
		s.log.Warn("credential requested but not configured", zap.String("kind", kind))
		return "", false
	}
	return v, true
}

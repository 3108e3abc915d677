package cli

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/da-luiz/Clear-Chain/internal/apiclient"
)

// Config configures vrctl.
type Config struct {
	APIURL      string        `envconfig:"CLEARCHAIN_API_URL" default:"http://localhost:8080"`
	SessionFile string        `envconfig:"CLEARCHAIN_SESSION_FILE"`
	Timeout     time.Duration `envconfig:"CLEARCHAIN_TIMEOUT" default:"30s"`
}

// LoadConfig reads the CLI configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = apiclient.DefaultSessionPath()
	}
	return cfg, nil
}

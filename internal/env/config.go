package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is read from the environment, after .env.local when there is one.
// Command line flags take precedence over it.
type Config struct {
	Query      string `env:"ELPIDA_QUERY,default=query"`
	Reply      string `env:"ELPIDA_REPLY,default=reply"`
	LogLevel   string `env:"ELPIDA_LOG_LEVEL,default=info"`
	MaxPayload int64  `env:"ELPIDA_MAX_PAYLOAD,default=1048576"`
	DebugHTTP  bool   `env:"ELPIDA_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

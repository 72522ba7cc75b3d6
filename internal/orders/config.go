package orders

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is read from the function's environment.
type Config struct {
	TableName string `env:"TABLE_NAME,required,notEmpty"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

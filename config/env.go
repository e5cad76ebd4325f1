package config

import (
	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file into the process environment.
func LoadEnv() {
	// If .env is missing, ignore error (env vars can be set by other means)
	_ = godotenv.Load()
}

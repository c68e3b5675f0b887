package config

import (
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv reads .env from the working directory without overriding
// variables already present in the process environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

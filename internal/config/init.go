package config

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile exports the variables in a dotenv file into the process
// environment. Variables already set win over the file, and a missing file is
// not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("No env file at %s, relying on process environment", path)
			return nil
		}
		return err
	}
	log.Printf("Loaded environment from %s", path)
	return nil
}

// SetEnvValue writes key=value into the dotenv file at path, keeping any
// other entries and creating the file when it does not exist yet.
func SetEnvValue(path, key, value string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		env = map[string]string{}
	}

	env[key] = value
	if err := godotenv.Write(env, path); err != nil {
		return err
	}
	return os.Chmod(path, 0600)
}

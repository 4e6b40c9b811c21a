package app

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/vk/taskbed/internal/shell"
)

// baseEnviron assembles the environment external commands inherit: the
// process environment, then dotenv files in order, then explicit vars.
// Later sources override earlier ones. Empty file entries are skipped.
func baseEnviron(envFiles []string, vars map[string]string) ([]string, error) {
	merged := map[string]string{}
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		fileVars, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", file, err)
		}
		for k, v := range fileVars {
			merged[k] = v
		}
	}
	for k, v := range vars {
		merged[k] = v
	}
	return shell.Environ(merged), nil
}

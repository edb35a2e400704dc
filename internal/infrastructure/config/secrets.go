package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// secretKeys can be supplied through a file named by <ENV>_FILE, the
// convention used by docker and kubernetes secret mounts
var secretKeys = []string{
	"auth.jwt_secret",
	"database.password",
	"redis.password",
	"aws.secret_access_key",
	"ai.openai_key",
	"ai.anthropic_key",
	"ai.gemini_key",
}

// applySecretFiles overrides secret keys with the content of their *_FILE
// variable. A set variable that points at an unreadable file is an error.
func applySecretFiles(v *viper.Viper) error {
	for _, key := range secretKeys {
		path := os.Getenv(secretFileEnv(key))
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read secret %s: %w", key, err)
		}
		v.Set(key, strings.TrimSpace(string(data)))
	}
	return nil
}

func secretFileEnv(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")) + "_FILE"
}

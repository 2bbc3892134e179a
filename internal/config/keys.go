package config

import (
	"net/url"
	"os"
)

// SettingSource represents where a sensitive setting comes from.
type SettingSource string

const (
	SettingEnv    SettingSource = "env"
	SettingConfig SettingSource = "config"
	SettingNone   SettingSource = "none"
)

// SecretDatabaseURL names the database connection URL in CheckSecrets.
const SecretDatabaseURL = "Database URL"

// SecretStatus reports a sensitive setting without revealing it.
type SecretStatus struct {
	Name   string        `json:"name"`
	Source SettingSource `json:"source"`
	IsSet  bool          `json:"is_set"`
	Masked string        `json:"masked,omitempty"`
}

// CheckSecrets returns the status of every sensitive setting.
func CheckSecrets(cfg *Config) []SecretStatus {
	return []SecretStatus{
		checkSecret(SecretDatabaseURL, cfg.Database.URL, EnvPrefix+"_DATABASE_URL", maskDSN),
	}
}

func checkSecret(name, value, envVar string, mask func(string) string) SecretStatus {
	status := SecretStatus{
		Name:   name,
		IsSet:  value != "",
		Source: SettingNone,
	}
	if value == "" {
		return status
	}
	if os.Getenv(envVar) != "" {
		status.Source = SettingEnv
	} else {
		status.Source = SettingConfig
	}
	status.Masked = mask(value)
	return status
}

// maskDSN hides the password of a connection URL. Values that are not URLs
// (SQLite file paths) are returned as is.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

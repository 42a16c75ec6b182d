// Package config loads the YAML run configuration: database connection,
// column mapping, separators and strictness for one insertion run.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DBConfig describes the target database connection.
type DBConfig struct {
	Type         string `yaml:"type"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	DatabaseName string `yaml:"database_name"`
	DSN          string `yaml:"dsn"` // optional explicit DSN
}

// RunConfig is the full configuration for one run: where to write, which
// input columns land where, and how mapping targets are spelled.
type RunConfig struct {
	Database    DBConfig          `yaml:"database"`
	SchemaFile  string            `yaml:"schema_file"`
	Mapping     map[string]string `yaml:"mapping"`
	SeparatorRF string            `yaml:"separator_rf"`
	SeparatorRR string            `yaml:"separator_rr"`
	Strict      bool              `yaml:"strict"`
}

// LoadFile loads YAML config from path.
func LoadFile(path string) (RunConfig, error) {
	var cfg RunConfig
	f, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NormalizeDriver maps common aliases to canonical driver keys.
func NormalizeDriver(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case "postgresql", "pg", "postgres":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "", "memory", "dry-run":
		return "memory"
	default:
		return strings.ToLower(d)
	}
}

// BuildDriverAndDSN produces a driver name and DSN string for the supported
// database types. An explicit DSN wins over the individual fields.
func BuildDriverAndDSN(db DBConfig) (driver string, dsn string, err error) {
	t := NormalizeDriver(db.Type)

	if db.DSN != "" {
		return t, db.DSN, nil
	}

	switch t {
	case "postgres":
		driver = "postgres"
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "mysql":
		driver = "mysql"
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			db.Username, db.Password, db.Host, db.Port, db.DatabaseName)
	case "memory":
		driver = "memory"
	default:
		err = fmt.Errorf("unsupported database type: %s", db.Type)
	}
	return
}

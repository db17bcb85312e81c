package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBatchSize is the number of rows fetched and inserted per batch
const DefaultBatchSize = 10

// Config represents the application configuration
type Config struct {
	SQLitePath string   `yaml:"sqlite_path"`
	Postgres   Postgres `yaml:"postgres"`
	// DestinationSQLite, when set, replaces Postgres with a local SQLite
	// file as the destination. Useful for rehearsing a load.
	DestinationSQLite string `yaml:"destination_sqlite"`
	BatchSize         int    `yaml:"batch_size"`
	LogLevel          string `yaml:"log_level"`
	LogMode           string `yaml:"log_mode"`
}

// Postgres holds the destination connection parameters
type Postgres struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DBName   string `yaml:"dbname"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Schema   string `yaml:"schema"`
	SSLMode  string `yaml:"sslmode"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		SQLitePath: "db.sqlite",
		Postgres: Postgres{
			Host:    "127.0.0.1",
			Port:    5432,
			Schema:  "content",
			SSLMode: "disable",
		},
		BatchSize: DefaultBatchSize,
		LogLevel:  "info",
		LogMode:   "dev",
	}
}

// Load loads configuration from multiple sources with precedence:
// 1. Environment variables
// 2. ./.env (dotenv) - walks up parent directories to find it
// 3. ~/.config/moviesdb/config.yaml (YAML)
// 4. Defaults
func Load() (*Config, error) {
	cfg := Default()

	// godotenv never overrides variables that are already set
	if envPath := findEnvFile(); envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if err := loadYAMLConfig(cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.BatchSize = BatchSizeOrDefault(cfg.BatchSize)

	return cfg, nil
}

// BatchSizeOrDefault maps a non-positive batch size to DefaultBatchSize
func BatchSizeOrDefault(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return n
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SQLITE_DB"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		cfg.Postgres.Port = port
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Postgres.DBName = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := getEnvOrFile("DB_PASSWORD", "DB_PASSWORD_FILE"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("DB_SCHEMA"); v != "" {
		cfg.Postgres.Schema = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("DEST_SQLITE"); v != "" {
		cfg.DestinationSQLite = v
	}
	if v := os.Getenv("BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BATCH_SIZE %q: %w", v, err)
		}
		cfg.BatchSize = n
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	return nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.SQLitePath == "" {
		errs = append(errs, errors.New("sqlite path not set (SQLITE_DB)"))
	}
	if c.DestinationSQLite == "" {
		if err := c.Postgres.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks the destination connection parameters
func (p Postgres) Validate() error {
	var errs []error
	if p.Host == "" {
		errs = append(errs, errors.New("postgres host not set (DB_HOST)"))
	}
	if p.Port <= 0 || p.Port > 65535 {
		errs = append(errs, fmt.Errorf("postgres port %d out of range (DB_PORT)", p.Port))
	}
	if p.DBName == "" {
		errs = append(errs, errors.New("postgres database name not set (DB_NAME)"))
	}
	if p.User == "" {
		errs = append(errs, errors.New("postgres user not set (DB_USER)"))
	}
	return errors.Join(errs...)
}

// DSN returns a postgres:// URL. The schema is set as search_path so
// unqualified table names resolve inside it.
func (p Postgres) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.DBName,
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	if p.Schema != "" {
		q.Set("search_path", p.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Redacted returns the DSN with the password masked
func (p Postgres) Redacted() string {
	if p.Password == "" {
		return p.DSN()
	}
	masked := p
	masked.Password = "xxxxx"
	return masked.DSN()
}

// loadYAMLConfig loads configuration from ~/.config/moviesdb/config.yaml
func loadYAMLConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(homeDir, ".config", "moviesdb", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// getEnvOrFile gets an environment variable value, or reads it from a file
// if the _FILE variant is set
func getEnvOrFile(envVar, fileVar string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}

	if filePath := os.Getenv(fileVar); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimRight(string(data), "\r\n")
		}
	}

	return ""
}

// findEnvFile searches for .env starting from cwd and walking up
// parent directories. Stops at the user's home directory.
// Returns the path to .env if found, empty string otherwise.
func findEnvFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, just check cwd
		if _, err := os.Stat(".env"); err == nil {
			return ".env"
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Clean paths for reliable comparison
	homeDir = filepath.Clean(homeDir)
	dir := filepath.Clean(cwd)

	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}

		// Stop if we've reached home directory
		if dir == homeDir {
			break
		}

		parent := filepath.Dir(dir)

		// Stop if we've reached the filesystem root
		if parent == dir {
			break
		}

		dir = parent
	}

	return ""
}

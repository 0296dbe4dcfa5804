package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/asagiri/genbamon/internal/entities"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Tools    ToolsConfig
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host        string
	Port        int
	MetricsPort int // Port for the Prometheus metrics HTTP server
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// CacheConfig represents resolution cache configuration.
type CacheConfig struct {
	Enabled    bool
	MaxEntries int
	TTLMinutes int
}

// ToolsConfig carries the closed tool vocabularies as comma-separated
// lists. The resolver treats any tool outside them as non-existent.
type ToolsConfig struct {
	CompanyTools string
	ProjectTools string
}

// Catalog parses the configured tool lists into the closed catalog.
func (t *ToolsConfig) Catalog() (entities.ToolCatalog, error) {
	catalog := entities.ToolCatalog{
		CompanyTools: splitToolList(t.CompanyTools),
		ProjectTools: splitToolList(t.ProjectTools),
	}
	if err := catalog.Validate(); err != nil {
		return entities.ToolCatalog{}, fmt.Errorf("invalid tool configuration: %w", err)
	}
	return catalog, nil
}

func splitToolList(raw string) []string {
	var tools []string
	for _, tool := range strings.Split(raw, ",") {
		tool = strings.TrimSpace(tool)
		if tool != "" {
			tools = append(tools, tool)
		}
	}
	return tools
}

// findProjectRoot finds the project root directory by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Walk up the directory tree until we find go.mod
	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory")
		}
		dir = parent
	}
}

// InitConfig initializes viper configuration.
// env: environment name (dev, test, prod)
func InitConfig(env string) error {
	if env == "" {
		env = "dev"
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(projectRoot)

	// Config file is optional; environment variables take precedence.
	_ = viper.ReadInConfig()
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("METRICS_PORT", 9090)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 15432)
	viper.SetDefault("DB_USER", "genbamon")
	viper.SetDefault("DB_NAME", "genbamon_dev")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("CACHE_ENABLED", true)
	viper.SetDefault("CACHE_MAX_ENTRIES", 10000)
	viper.SetDefault("CACHE_TTL_MINUTES", 5)

	viper.SetDefault("COMPANY_TOOLS", "projects,directory,time_tracking,financials,equipment,reports,settings")
	viper.SetDefault("PROJECT_TOOLS", "daily_logs,tasks,schedule,documents,photos,rfis,safety,financials,time_tracking,members")

	return nil
}

// Load loads configuration from viper.
func Load() (*Config, error) {
	// DB_PASSWORD is required for security
	dbPassword := viper.GetString("DB_PASSWORD")
	if dbPassword == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required (set via environment variable or .env file)")
	}

	config := &Config{
		Server: ServerConfig{
			Host:        viper.GetString("SERVER_HOST"),
			Port:        viper.GetInt("SERVER_PORT"),
			MetricsPort: viper.GetInt("METRICS_PORT"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: dbPassword,
			Database: viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:    viper.GetBool("CACHE_ENABLED"),
			MaxEntries: viper.GetInt("CACHE_MAX_ENTRIES"),
			TTLMinutes: viper.GetInt("CACHE_TTL_MINUTES"),
		},
		Tools: ToolsConfig{
			CompanyTools: viper.GetString("COMPANY_TOOLS"),
			ProjectTools: viper.GetString("PROJECT_TOOLS"),
		},
	}

	return config, nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}

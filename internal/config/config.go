package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" mapstructure:"shutdownTimeout"`
}

// OracleConfig holds the generative API settings.
type OracleConfig struct {
	BaseURL    string `json:"baseUrl" mapstructure:"baseUrl"`
	APIKey     string `json:"apiKey" mapstructure:"apiKey"`
	ProModel   string `json:"proModel" mapstructure:"proModel"`
	FlashModel string `json:"flashModel" mapstructure:"flashModel"`
	ImageModel string `json:"imageModel" mapstructure:"imageModel"`
}

// MemoryConfig holds in-memory audit backend settings.
type MemoryConfig struct {
	Capacity  int    `json:"capacity" mapstructure:"capacity"`
	OutputDir string `json:"outputDir" mapstructure:"outputDir"`
}

// AuditConfig holds oracle-call audit log settings.
type AuditConfig struct {
	Backend       string        `json:"backend" mapstructure:"backend"`
	Memory        MemoryConfig  `json:"memory" mapstructure:"memory"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	BatchSize     int           `json:"batchSize" mapstructure:"batchSize"`
}

// OTelConfig holds OpenTelemetry log export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./chembenchlogs")

	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("http.shutdownTimeout", "10s")

	viper.SetDefault("oracle.baseUrl", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("oracle.apiKey", "")
	viper.SetDefault("oracle.proModel", "gemini-2.5-pro")
	viper.SetDefault("oracle.flashModel", "gemini-2.5-flash")
	viper.SetDefault("oracle.imageModel", "gemini-2.5-flash-image-preview")

	viper.SetDefault("audit.backend", "memory")
	viper.SetDefault("audit.memory.capacity", 1000)
	viper.SetDefault("audit.memory.outputDir", "./auditlogs")
	viper.SetDefault("audit.flushInterval", "5s")
	viper.SetDefault("audit.batchSize", 500)

	viper.SetDefault("audit.db.host", "localhost")
	viper.SetDefault("audit.db.port", "5432")
	viper.SetDefault("audit.db.username", "postgres")
	viper.SetDefault("audit.db.password", "postgres")
	viper.SetDefault("audit.db.database", "chembench")
	viper.SetDefault("audit.db.sqlitePath", "./chembench_audit.db")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "chembench-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "chembench-server")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("chembench.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetHTTPConfig returns the HTTP listener configuration.
func GetHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:            viper.GetString("http.addr"),
		ShutdownTimeout: viper.GetDuration("http.shutdownTimeout"),
	}
}

// GetOracleConfig returns the generative API configuration.
func GetOracleConfig() OracleConfig {
	return OracleConfig{
		BaseURL:    viper.GetString("oracle.baseUrl"),
		APIKey:     viper.GetString("oracle.apiKey"),
		ProModel:   viper.GetString("oracle.proModel"),
		FlashModel: viper.GetString("oracle.flashModel"),
		ImageModel: viper.GetString("oracle.imageModel"),
	}
}

// GetAuditConfig returns the audit log configuration.
func GetAuditConfig() AuditConfig {
	return AuditConfig{
		Backend: viper.GetString("audit.backend"),
		Memory: MemoryConfig{
			Capacity:  viper.GetInt("audit.memory.capacity"),
			OutputDir: viper.GetString("audit.memory.outputDir"),
		},
		FlushInterval: viper.GetDuration("audit.flushInterval"),
		BatchSize:     viper.GetInt("audit.batchSize"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

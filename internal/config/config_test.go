package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chembench.cfg.json"), []byte(content), 0644))
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{
		"logLevel": "debug",
		"http": { "addr": ":9090" },
		"oracle": { "apiKey": "secret", "proModel": "gemini-custom" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, ":9090", viper.GetString("http.addr"))
	assert.Equal(t, "secret", viper.GetString("oracle.apiKey"))
	assert.Equal(t, "gemini-custom", viper.GetString("oracle.proModel"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./chembenchlogs", viper.GetString("logsDir"))
	assert.Equal(t, ":8080", viper.GetString("http.addr"))
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", viper.GetString("oracle.baseUrl"))
	assert.Equal(t, "", viper.GetString("oracle.apiKey"))
	assert.Equal(t, "gemini-2.5-pro", viper.GetString("oracle.proModel"))
	assert.Equal(t, "gemini-2.5-flash", viper.GetString("oracle.flashModel"))
	assert.Equal(t, "memory", viper.GetString("audit.backend"))
	assert.Equal(t, 1000, viper.GetInt("audit.memory.capacity"))
	assert.Equal(t, "localhost", viper.GetString("audit.db.host"))
	assert.Equal(t, "5432", viper.GetString("audit.db.port"))
	assert.Equal(t, "chembench", viper.GetString("audit.db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "chembench-metrics", viper.GetString("influx.org"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "chembench-server", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetHTTPConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{"http": {"addr": ":3000", "shutdownTimeout": "30s"}}`)
	require.NoError(t, Load(dir))

	hc := GetHTTPConfig()
	assert.Equal(t, ":3000", hc.Addr)
	assert.Equal(t, 30*time.Second, hc.ShutdownTimeout)
}

func TestGetOracleConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{}`)
	require.NoError(t, Load(dir))

	oc := GetOracleConfig()
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta", oc.BaseURL)
	assert.Equal(t, "gemini-2.5-pro", oc.ProModel)
	assert.Equal(t, "gemini-2.5-flash", oc.FlashModel)
	assert.Equal(t, "gemini-2.5-flash-image-preview", oc.ImageModel)
}

func TestGetAuditConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{}`)
	require.NoError(t, Load(dir))

	ac := GetAuditConfig()
	assert.Equal(t, "memory", ac.Backend)
	assert.Equal(t, 1000, ac.Memory.Capacity)
	assert.Equal(t, "./auditlogs", ac.Memory.OutputDir)
	assert.Equal(t, 5*time.Second, ac.FlushInterval)
	assert.Equal(t, 500, ac.BatchSize)
}

func TestGetAuditConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{
		"audit": {
			"backend": "sqlite",
			"memory": { "capacity": 50, "outputDir": "/tmp/audit" },
			"flushInterval": "10s",
			"batchSize": 100
		}
	}`)
	require.NoError(t, Load(dir))

	ac := GetAuditConfig()
	assert.Equal(t, "sqlite", ac.Backend)
	assert.Equal(t, 50, ac.Memory.Capacity)
	assert.Equal(t, "/tmp/audit", ac.Memory.OutputDir)
	assert.Equal(t, 10*time.Second, ac.FlushInterval)
	assert.Equal(t, 100, ac.BatchSize)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{}`)
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, false, oc.Enabled)
	assert.Equal(t, "chembench-server", oc.ServiceName)
	assert.Equal(t, 5*time.Second, oc.BatchTimeout)
	assert.Equal(t, "", oc.Endpoint)
	assert.Equal(t, true, oc.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	writeConfig(t, dir, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

// internal/pkg/bootstrap/config_test.go
package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalYAML(t *testing.T) {
	var doc struct {
		Timeout Duration `yaml:"timeout"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("timeout: 15s"), &doc))
	assert.Equal(t, 15*time.Second, doc.Timeout.Std())

	require.NoError(t, yaml.Unmarshal([]byte("timeout: 2h30m"), &doc))
	assert.Equal(t, 2*time.Hour+30*time.Minute, doc.Timeout.Std())

	err := yaml.Unmarshal([]byte("timeout: not-a-duration"), &doc)
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "checkout-service", cfg.App.ServiceName)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "mock", cfg.Payment.Provider)
	assert.Equal(t, 15*time.Second, cfg.Payment.CallTimeout.Std())
	assert.Equal(t, 2*time.Hour, cfg.Automation.ScanInterval.Std())
	assert.Equal(t, 24*time.Hour, cfg.Automation.AbandonedCartAfter.Std())
	assert.Equal(t, 7*24*time.Hour, cfg.Automation.ReviewRequestAfter.Std())
	assert.InDelta(t, 0.10, cfg.Checkout.TaxRate, 1e-9)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  serviceName: storefront
  port: 9000
payment:
  provider: hosted
  callTimeout: 5s
automation:
  scanInterval: 30m
  lowStockThreshold: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "storefront", cfg.App.ServiceName)
	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "hosted", cfg.Payment.Provider)
	assert.Equal(t, 5*time.Second, cfg.Payment.CallTimeout.Std())
	assert.Equal(t, 30*time.Minute, cfg.Automation.ScanInterval.Std())
	assert.Equal(t, 3, cfg.Automation.LowStockThreshold)
	// 未出现在文件里的键保持默认值
	assert.Equal(t, 24*time.Hour, cfg.Automation.SuppressionWindow.Std())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PAYMENT_PROVIDER", "hosted")
	t.Setenv("APP_PORT", "9100")
	t.Setenv("AUTOMATION_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "hosted", cfg.Payment.Provider)
	assert.Equal(t, 9100, cfg.App.Port)
	assert.False(t, cfg.Automation.Enabled)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "checkout-service", cfg.App.ServiceName)
}

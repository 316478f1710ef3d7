package pfconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCreateExampleConfig(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "portfolio.yaml")

	name, err := CreateExampleConfig(tempFile)
	require.NoError(t, err)
	assert.Equal(t, tempFile, name)

	data, err := os.ReadFile(tempFile)
	require.NoError(t, err)

	var config Config
	require.NoError(t, yaml.Unmarshal(data, &config))
	assert.Equal(t, "Shiva Pandey", config.Profile.Name)
	assert.Len(t, config.Profile.Projects, 4)
	assert.Equal(t, 4*time.Hour, config.Analytics.Cooldown)

	// les secrets ne doivent jamais etre écrits
	assert.NotContains(t, string(data), "uri:")
	assert.NotContains(t, string(data), "endpoint:")
}

func TestLoadConfig(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "load.yaml")
	config := &Config{
		Analytics: AnalyticsConfig{
			Enabled: true,
			Db:      "sqlite",
			Path:    "visitors.db",
		},
		Profile: ProfileConfig{Name: "Test"},
	}
	require.NoError(t, WriteConfigYaml(tempFile, config))

	loaded, err := LoadConfig(tempFile)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", loaded.Analytics.Db)
	assert.Equal(t, "Test", loaded.Profile.Title)
	assert.Equal(t, 4*time.Hour, loaded.Analytics.Cooldown)
	assert.Equal(t, "beacon", loaded.Analytics.IPSource)
	assert.Equal(t, "visitors", loaded.Analytics.Collection)

	_, err = LoadConfig("nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoadConfigCooldown(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "cooldown.yaml")
	require.NoError(t, os.WriteFile(tempFile, []byte("analytics:\n  cooldown: 90m\n"), 0644))

	loaded, err := LoadConfig(tempFile)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, loaded.Analytics.Cooldown)
}

func TestLoadSecrets(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FORM_ENDPOINT=https://formspree.io/f/test\n"), 0600))
	t.Setenv(EnvMongoURI, "mongodb://localhost:27017")
	t.Setenv(EnvFormEndpoint, "")
	os.Unsetenv(EnvFormEndpoint)

	config := &Config{}
	require.NoError(t, LoadSecrets(config, envFile, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "mongodb://localhost:27017", config.Analytics.Uri)
	assert.Equal(t, "https://formspree.io/f/test", config.Contact.Endpoint)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{
			Analytics: AnalyticsConfig{Enabled: true, Uri: "mongodb://localhost"},
			Contact:   ContactConfig{Endpoint: "https://formspree.io/f/x"},
		}
		ApplyDefaults(c)
		return c
	}

	assert.NoError(t, Validate(base()))

	c := base()
	c.Contact.Endpoint = ""
	assert.ErrorContains(t, Validate(c), EnvFormEndpoint)

	c = base()
	c.Analytics.Uri = ""
	assert.ErrorContains(t, Validate(c), EnvMongoURI)

	c = base()
	c.Analytics.Enabled = false
	c.Analytics.Uri = ""
	assert.NoError(t, Validate(c))

	c = base()
	c.Analytics.Db = "postgres"
	assert.Error(t, Validate(c))

	c = base()
	c.Analytics.IPSource = "dns"
	assert.Error(t, Validate(c))

	c = base()
	c.Analytics.Geo.Provider = "maxmind"
	assert.Error(t, Validate(c))
	c.Analytics.Geo.MaxMind = "GeoLite2-City.mmdb"
	assert.NoError(t, Validate(c))
}

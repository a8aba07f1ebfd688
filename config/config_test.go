package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONConfigGroupedSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	raw := `{
		"app": {"AppPort": "9000", "JWTSecret": "s3cret", "AdminRegCode": "letmein", "AllowedOrigins": [" http://a ", ""]},
		"database": {"Driver": "sqlite", "DBName": "blog"},
		"redis": {"Enabled": true, "RedisPort": 6380},
		"limits": {"CommentLimitPerMinute": 5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))
	applyDefaults(&c)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, "letmein", c.AdminRegCode)
	assert.Equal(t, []string{"http://a"}, c.AllowedOrigins)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.True(t, c.RedisEnabled)
	assert.Equal(t, 6380, c.RedisPort)
	assert.Equal(t, 5, c.CommentLimitPerMinute)
	assert.Equal(t, 20, c.AILimitPerMinute)
	assert.Equal(t, "blog.db", BuildDSN(c))
}

func TestLoadJSONConfigMissingFile(t *testing.T) {
	var c AppConfig
	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "absent.json"), &c))
	assert.Empty(t, c.AppPort)
}

func TestLoadJSONConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	var c AppConfig
	assert.Error(t, loadJSONConfig(path, &c))
}

func TestBuildDSNMySQL(t *testing.T) {
	c := AppConfig{DBDriver: "mysql", DBUser: "u", DBPassword: "p", DBHost: "db", DBPort: "3307", DBName: "diaries"}
	assert.Equal(t, "u:p@tcp(db:3307)/diaries?charset=utf8mb4&parseTime=True&loc=Local", BuildDSN(c))

	c.DatabaseURI = "custom"
	assert.Equal(t, "custom", BuildDSN(c))
}

func TestOverrideFillsDefaults(t *testing.T) {
	c := Override(AppConfig{JWTSecret: "x"})
	assert.Equal(t, "5000", c.AppPort)
	assert.Equal(t, 20, c.CommentLimitPerMinute)
	assert.Equal(t, "x", Get().JWTSecret)
}

func TestOpenDatabaseRejectsUnknownDriver(t *testing.T) {
	_, err := OpenDatabase("oracle", "dsn", "silent")
	assert.Error(t, err)
}

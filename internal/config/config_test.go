package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// when
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	// then
	require.NoError(t, err)
	assert.Equal(t, "smtp", cfg.Mail.Transport)
	assert.Equal(t, 3, cfg.Mail.Retries)
	assert.Equal(t, 5*time.Second, cfg.Mail.RetryDelay)
	assert.Equal(t, 60*time.Second, cfg.Mail.Pause)
	assert.Equal(t, "NDTL", cfg.Report.Organization)
	assert.Equal(t, ":8181", cfg.Http.Addr)
	assert.Equal(t, 7, cfg.Schedule.Hour)
	assert.Equal(t, "public", cfg.Redmine.Schema)
}

func TestLoad_YamlAndEnv(t *testing.T) {
	// given
	path := writeConfig(t, `
mail:
  transport: console
  from: reports@ndtl.example.edu
  pause: 1s
report:
  organization: LAB
  attachxlsx: true
  timezone: UTC
schedule:
  enabled: true
  hour: 6
  jobs:
    - pi-weekly
    - reminder
holidays:
  - date: "2026-12-25"
    name: Christmas
`)
	t.Setenv("TIMEREPORT_REDMINE_HOST", "redmine.internal")
	t.Setenv("TIMEREPORT_MAIL_RETRIES", "5")

	// when
	cfg, err := Load(path)

	// then
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Mail.Transport)
	assert.Equal(t, "reports@ndtl.example.edu", cfg.Mail.From)
	assert.Equal(t, time.Second, cfg.Mail.Pause)
	assert.Equal(t, 5, cfg.Mail.Retries)
	assert.Equal(t, "redmine.internal", cfg.Redmine.Host)
	assert.Equal(t, "LAB", cfg.Report.Organization)
	assert.True(t, cfg.Report.AttachXlsx)
	assert.Equal(t, []string{"pi-weekly", "reminder"}, cfg.Schedule.Jobs)
	assert.Equal(t, []Holiday{{Date: "2026-12-25", Name: "Christmas"}}, cfg.Holidays)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown transport", content: "mail:\n  transport: fax\n"},
		{name: "schedule hour out of range", content: "schedule:\n  hour: 24\n"},
		{name: "malformed holiday date", content: "holidays:\n  - date: 25/12/2026\n    name: Christmas\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// when
			_, err := Load(writeConfig(t, tt.content))

			// then
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestReport_Location(t *testing.T) {
	assert.Equal(t, "America/New_York", Report{Timezone: "America/New_York"}.Location().String())
	assert.Equal(t, time.UTC, Report{Timezone: "Mars/Olympus"}.Location())
}

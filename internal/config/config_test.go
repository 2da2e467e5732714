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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: presence
  user: presence
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, 1280, cfg.Recognition.EmbeddingDim)
	assert.Equal(t, 0.7, cfg.Recognition.VerifyThreshold)
	assert.Equal(t, 0.6, cfg.Recognition.CheckInThreshold)
	assert.Equal(t, 3, cfg.Recognition.MinPhotos)
	assert.Equal(t, 10, cfg.Recognition.MaxPhotos)
	assert.Equal(t, 10*time.Second, cfg.Recognition.EncoderTimeout)
	assert.Equal(t, "07:30", cfg.Attendance.LateCutoff)
	assert.Equal(t, 7, cfg.Attendance.TimezoneOffset)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
recognition:
  verify_threshold: 0.8
  checkin_threshold: 0.65
attendance:
  late_cutoff: "08:00"
  timezone_offset: 9
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.8, cfg.Recognition.VerifyThreshold)
	assert.Equal(t, 0.65, cfg.Recognition.CheckInThreshold)
	assert.Equal(t, "08:00", cfg.Attendance.LateCutoff)
	assert.Equal(t, 9, cfg.Attendance.TimezoneOffset)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
database:
  host: localhost
`)

	t.Setenv("PRESENCE_SERVER_PORT", "9999")
	t.Setenv("PRESENCE_DB_HOST", "db.internal")
	t.Setenv("PRESENCE_CHECKIN_THRESHOLD", "0.55")
	t.Setenv("PRESENCE_LATE_CUTOFF", "09:15")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 0.55, cfg.Recognition.CheckInThreshold)
	assert.Equal(t, "09:15", cfg.Attendance.LateCutoff)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidCutoff(t *testing.T) {
	path := writeConfig(t, `
attendance:
  late_cutoff: "25:99"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MalformedCutoff(t *testing.T) {
	path := writeConfig(t, `
attendance:
  late_cutoff: "soon"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestCutoff_Parse(t *testing.T) {
	a := AttendanceConfig{LateCutoff: "07:30"}
	hour, minute, err := a.Cutoff()
	require.NoError(t, err)
	assert.Equal(t, 7, hour)
	assert.Equal(t, 30, minute)
}

func TestLocation_Offset(t *testing.T) {
	a := AttendanceConfig{TimezoneOffset: 7}
	loc := a.Location()

	at := time.Date(2026, time.March, 2, 0, 30, 0, 0, time.UTC)
	assert.Equal(t, 7, at.In(loc).Hour())
	assert.Equal(t, 30, at.In(loc).Minute())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "presence", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5432/presence?sslmode=disable", d.DSN())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, ".clearflow", "clearflow.db"), cfg.DB)
	assert.Equal(t, DefaultEscalationDays, cfg.EscalationDays)
	assert.Contains(t, cfg.Roles, "admin")
	assert.True(t, cfg.Roles["admin"].Super)
	assert.Equal(t, []string{"library"}, cfg.Roles["library_officer"].Stages)
}

func TestLoadFromFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(Dir(root), 0o750))
	require.NoError(t, os.WriteFile(Path(root), []byte(`
db: memory://
actor: registrar-3
role: registrar
escalation_days: 5
roles:
  dean:
    stages: [dean_office]
  admin:
    super: true
`), 0o600))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "memory://", cfg.DB)
	assert.Equal(t, "registrar-3", cfg.Actor)
	assert.Equal(t, 5, cfg.EscalationDays)
	assert.Equal(t, []string{"dean_office"}, cfg.Roles["dean"].Stages)
	assert.True(t, cfg.Roles["admin"].Super)
	assert.NotContains(t, cfg.Roles, "cashier", "file roles replace the defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, Save(root, &Config{DB: "file.db", EscalationDays: 5}))

	t.Setenv("CFL_DB", "memory://")
	t.Setenv("CFL_ESCALATION_DAYS", "7")
	t.Setenv("CFL_ACTOR", "admin-1")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "memory://", cfg.DB)
	assert.Equal(t, 7, cfg.EscalationDays)
	assert.Equal(t, "admin-1", cfg.Actor)
}

func TestSaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	in := &Config{
		DB:             "memory://",
		Actor:          "cashier-2",
		Role:           "cashier",
		EscalationDays: 4,
		SweepWorkers:   2,
		NotifyWebhook:  "http://localhost:9000/notify",
	}
	require.NoError(t, Save(root, in))

	out, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, in.DB, out.DB)
	assert.Equal(t, in.Actor, out.Actor)
	assert.Equal(t, in.EscalationDays, out.EscalationDays)
	assert.Equal(t, in.SweepWorkers, out.SweepWorkers)
	assert.Equal(t, in.NotifyWebhook, out.NotifyWebhook)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(Dir(root), 0o750))
	require.NoError(t, os.WriteFile(Path(root), []byte("db: [unclosed"), 0o600))
	_, err := Load(root)
	assert.Error(t, err)
}

package model

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityLevel(t *testing.T) {
	assert.Equal(t, 1, PriorityLow.Level())
	assert.Equal(t, 2, PriorityMedium.Level())
	assert.Equal(t, 3, PriorityHigh.Level())
	assert.Equal(t, 2, Priority("urgent").Level())
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" HIGH ")
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}

func TestCategoryInfoFor(t *testing.T) {
	info := CategoryInfoFor("shopping")
	assert.True(t, info.Known)
	assert.Equal(t, "🛒", info.Icon)

	unknown := CategoryInfoFor("garden")
	assert.False(t, unknown.Known)
	assert.Equal(t, "garden", unknown.Label)
	assert.Equal(t, "❓", unknown.Icon)

	empty := CategoryInfoFor("")
	assert.Equal(t, "Неизвестно", empty.Label)
}

func TestCategoryKeys(t *testing.T) {
	keys := CategoryKeys()
	require.Len(t, keys, 13)
	assert.Equal(t, "general", keys[0])
	assert.Equal(t, "other", keys[12])
}

func TestTaskIsOverdueAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	assert.False(t, Task{}.IsOverdueAt(now), "no due date")
	assert.True(t, Task{DueDate: &yesterday}.IsOverdueAt(now))
	assert.False(t, Task{DueDate: &tomorrow}.IsOverdueAt(now))
	assert.False(t, Task{DueDate: &yesterday, Completed: true}.IsOverdueAt(now))
	assert.False(t, Task{DueDate: &now}.IsOverdueAt(now), "strictly before now")
}

func TestTaskCloneIsDeep(t *testing.T) {
	due := time.Now()
	orig := Task{ID: "a", DueDate: &due}
	c := orig.Clone()
	*c.DueDate = due.Add(time.Hour)
	assert.Equal(t, due, *orig.DueDate)
}

func TestValidateTaskText(t *testing.T) {
	assert.Error(t, ValidateTaskText("   "))
	assert.NoError(t, ValidateTaskText("Buy milk"))
	assert.NoError(t, ValidateTaskText(strings.Repeat("я", MaxTaskTextLength)))
	assert.Error(t, ValidateTaskText(strings.Repeat("я", MaxTaskTextLength+1)))
}

func TestSessionValid(t *testing.T) {
	now := time.Now()
	s := Session{Token: "t", User: User{ID: 1}, Expiry: now.Add(time.Hour)}
	assert.True(t, s.Valid(now))
	assert.False(t, s.Valid(now.Add(2*time.Hour)))
	assert.False(t, Session{User: User{ID: 1}, Expiry: now.Add(time.Hour)}.Valid(now))
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Client.ServerURL)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "INBOX", cfg.Inbox.Mailbox)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.Client.ServerURL = "https://tasks.example.com/"
	cfg.Server.RedisAddr = "localhost:6379"

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://tasks.example.com", loaded.Client.ServerURL)
	assert.Equal(t, "localhost:6379", loaded.Server.RedisAddr)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TODOPRO_SERVER_LISTEN", ":9999")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Listen)
}

package services

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexconsult/certidao-api/internal/config"
	"github.com/nexconsult/certidao-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteChromePreferencesRoutesDownloads(t *testing.T) {
	downloadDir := t.TempDir()
	profileDir := filepath.Join(downloadDir, profileDirName)

	require.NoError(t, writeChromePreferences(profileDir, downloadDir))

	raw, err := os.ReadFile(filepath.Join(profileDir, "Default", "Preferences"))
	require.NoError(t, err)

	var prefs struct {
		Download struct {
			DefaultDirectory  string `json:"default_directory"`
			PromptForDownload bool   `json:"prompt_for_download"`
		} `json:"download"`
		Plugins struct {
			AlwaysOpenPDFExternally bool `json:"always_open_pdf_externally"`
		} `json:"plugins"`
	}
	require.NoError(t, json.Unmarshal(raw, &prefs))

	assert.Equal(t, downloadDir, prefs.Download.DefaultDirectory)
	assert.False(t, prefs.Download.PromptForDownload)
	assert.True(t, prefs.Plugins.AlwaysOpenPDFExternally)
}

func TestWriteChromePreferencesFailsOnBlockedProfile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := writeChromePreferences(filepath.Join(blocker, profileDirName), t.TempDir())
	assert.ErrorContains(t, err, "create browser profile")
}

func TestAllocatorOptionsFollowConfig(t *testing.T) {
	base := NewChromeLauncher(config.BrowserConfig{}, logger.Discard()).allocatorOptions("/tmp/profile")

	full := NewChromeLauncher(config.BrowserConfig{
		Headless:  true,
		ExecPath:  "/usr/bin/chromium",
		UserAgent: "Mozilla/5.0",
	}, logger.Discard()).allocatorOptions("/tmp/profile")

	// headless adds three flags, exec path and user agent one each
	assert.Len(t, full, len(base)+5)
}

func TestStartTimeoutDefaults(t *testing.T) {
	assert.Equal(t, 30*time.Second, NewChromeLauncher(config.BrowserConfig{}, logger.Discard()).startTimeout())
	assert.Equal(t, 5*time.Second, NewChromeLauncher(config.BrowserConfig{ActionTimeout: 5 * time.Second}, logger.Discard()).startTimeout())
}

func TestOpenFailsBeforeLaunchWhenDirectoryCannotBeCreated(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	session, err := NewChromeLauncher(config.BrowserConfig{Headless: true}, logger.Discard()).
		Open(context.Background(), filepath.Join(blocker, "run"))

	assert.Nil(t, session)
	assert.ErrorContains(t, err, "create download directory")
}

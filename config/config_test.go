package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() VoiceConfig {
	return VoiceConfig{
		BackendURL:          "http://localhost:4000/api",
		BackendTimeoutSec:   10,
		BreakerFailures:     5,
		BreakerResetSec:     30,
		SpeechLocale:        "ar-TN",
		MenuTimeoutMs:       10000,
		WizardTimeoutMs:     8000,
		SpeakTimeoutMs:      15000,
		DebounceMs:          1800,
		NameAttempts:        3,
		ReadListLimit:       3,
		ProductChoices:      5,
		Classifier:          "keyword",
		MinIntentConfidence: 0.6,
		ClassifierCacheSize: 512,
		LLMTimeoutMs:        8000,
		JournalDriver:       "memory",
		JournalMaxTurns:     200,
		JournalTTLHours:     24,
		BridgePath:          "/ws",
		LogFileLevel:        "info",
		LogMaxSizeMB:        50,
		NotifyStore:         "memory",
		NotifyMaxAttempts:   5,
		NotifyTimeoutSec:    10,
		NotifyBackoffSec:    2,
		NotifyBackoffMaxSec: 300,
		WorkerPoolCount:     4,
		WorkerPoolCapacity:  1000,
		SessionIdleMinutes:  30,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*VoiceConfig)
		wantErr bool
	}{
		{"defaults", func(*VoiceConfig) {}, false},
		{"bad backend url", func(c *VoiceConfig) { c.BackendURL = "not a url" }, true},
		{"unknown classifier", func(c *VoiceConfig) { c.Classifier = "bert" }, true},
		{"llm without key", func(c *VoiceConfig) { c.Classifier = "llm" }, true},
		{"llm with key", func(c *VoiceConfig) { c.Classifier = "llm"; c.LLMAPIKey = "sk" }, false},
		{"unknown journal", func(c *VoiceConfig) { c.JournalDriver = "mongo" }, true},
		{"short menu timeout", func(c *VoiceConfig) { c.MenuTimeoutMs = 10 }, true},
		{"bridge path", func(c *VoiceConfig) { c.BridgePath = "ws" }, true},
		{"backoff max below initial", func(c *VoiceConfig) { c.NotifyBackoffMaxSec = 1 }, true},
		{"unknown notify store", func(c *VoiceConfig) { c.NotifyStore = "redis" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDialogConfig(t *testing.T) {
	c := validConfig()
	d := c.Dialog()
	if d.MenuTimeout != 10*time.Second || d.WizardTimeout != 8*time.Second || d.Debounce != 1800*time.Millisecond {
		t.Errorf("timings = %v %v %v", d.MenuTimeout, d.WizardTimeout, d.Debounce)
	}
	if d.Wizard.NameAttempts != 3 || d.Wizard.Candidates != 5 {
		t.Errorf("wizard = %+v", d.Wizard)
	}
	if j := c.Journal(nil); j.TTL != 24*time.Hour || j.MaxTurns != 200 {
		t.Errorf("journal = %+v", j)
	}
	if c.UsesDatastore() {
		t.Error("UsesDatastore() = true for memory stores")
	}
	c.NotifyStore = "sql"
	if !c.UsesDatastore() {
		t.Error("UsesDatastore() = false for sql notify store")
	}
	if n := c.Notify(); n.BackoffMax != 5*time.Minute || len(n.URLOptions) != 0 {
		t.Errorf("notify = %+v", n)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("VOICEDIALOG_TEST_KEY=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("VOICEDIALOG_TEST_KEY") })

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnvFiles: %v", err)
	}
	if got := os.Getenv("VOICEDIALOG_TEST_KEY"); got != "from-file" {
		t.Errorf("VOICEDIALOG_TEST_KEY = %q", got)
	}
}

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogFileClosedWhenCommandFails(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "run.log")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := "log_file: " + logPath + "\ninput_dir: " + dir + "\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Cleanup(func() {
		convertOpts = convertFlags{}
		rootCmd.SetArgs(nil)
		closeLogFile()
	})

	rootCmd.SetArgs([]string{"convert", "--config", cfgPath, "--format", "pdf"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Fatalf("expected output format error, got %v", err)
	}

	if logFile != nil {
		t.Fatalf("expected log file to be closed after a failing command")
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("expected log file to have been opened: %v", err)
	}
}

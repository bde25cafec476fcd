package configuration

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv_LoadsExistingFilesOnly(t *testing.T) {
	tmp := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmp, ".env.local"), []byte("COSTLINE_TEST_ENV_LOAD=ok\n"), 0o644); err != nil {
		t.Fatalf("write .env.local: %v", err)
	}

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("COSTLINE_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("COSTLINE_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded, got %q", got)
	}
}

func TestImportOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    ImportOptions
		wantErr bool
	}{
		{"defaults", ImportOptions{MaxDropRatio: 0.5, Workers: 4}, false},
		{"zero drop ratio", ImportOptions{MaxDropRatio: 0, Workers: 1}, false},
		{"ratio above one", ImportOptions{MaxDropRatio: 1.5, Workers: 1}, true},
		{"negative ratio", ImportOptions{MaxDropRatio: -0.1, Workers: 1}, true},
		{"no workers", ImportOptions{MaxDropRatio: 0.5, Workers: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRateLimitOptions_Validate(t *testing.T) {
	opts := RateLimitOptions{Enabled: true, GlobalRPS: -1}
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for negative RPS")
	}
}

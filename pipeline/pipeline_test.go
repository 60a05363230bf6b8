package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sumbird/sumbird/config"
	"github.com/sumbird/sumbird/fetcher"
)

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumbird.lock")

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("lock file not created: %v", err)
	}

	// A second acquire must fail while the lock is held.
	if _, err := AcquireLock(path); err == nil {
		t.Fatal("expected second AcquireLock to fail")
	} else if !strings.Contains(err.Error(), "another run holds the lock") {
		t.Errorf("unexpected error: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file not removed on release")
	}

	// Lock can be taken again after release.
	lock, err = AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock after release failed: %v", err)
	}
	lock.Release()
}

func TestAcquireLock_StaleTakeover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumbird.lock")

	stale := time.Now().Add(-3 * time.Hour).Unix()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("9999 %d\n", stale)), 0o644); err != nil {
		t.Fatalf("failed to write stale lock: %v", err)
	}

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("expected stale lock takeover, got: %v", err)
	}
	defer lock.Release()

	pid, _, err := readLock(path)
	if err != nil {
		t.Fatalf("readLock failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("lock not taken over: pid %d", pid)
	}
}

func TestAcquireLock_MalformedLockTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sumbird.lock")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("failed to write lock: %v", err)
	}

	lock, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("expected malformed lock takeover, got: %v", err)
	}
	lock.Release()
}

func TestCheckFetchPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.MinFeedsTotal = 10
	cfg.MinFeedsSuccessRatio = 0.8

	tests := []struct {
		name       string
		successful int
		total      int
		wantErr    bool
	}{
		{"all ok", 20, 20, false},
		{"ratio at threshold", 16, 20, false},
		{"ratio below threshold", 15, 20, true},
		{"too few feeds", 5, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := fetcher.Result{Successful: tt.successful, Total: tt.total}
			err := checkFetchPolicy(cfg, result)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkFetchPolicy(%d/%d) = %v, wantErr %v", tt.successful, tt.total, err, tt.wantErr)
			}
		})
	}
}

func TestSkipStage(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "2025-06-01.md")
	if err := os.WriteFile(existing, []byte("content"), 0o644); err != nil {
		t.Fatalf("failed to write stage file: %v", err)
	}

	p := &Pipeline{}
	if !p.skipStage(existing) {
		t.Error("existing stage output should be skipped")
	}
	if p.skipStage(filepath.Join(dir, "missing.md")) {
		t.Error("missing stage output should not be skipped")
	}

	p.opts.Force = true
	if p.skipStage(existing) {
		t.Error("force run should never skip")
	}
}

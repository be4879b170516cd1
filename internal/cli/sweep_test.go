package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fitquiz-assignment-service/internal/app"
)

func TestRunSweepWithSeededStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var out bytes.Buffer
	if err := runSweep(context.Background(), path, &out); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	var report app.SweepReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report %q: %v", out.String(), err)
	}
	// The seeded user registered just now, so the onboarding quiz is not due.
	if report.QuizzesScanned != 1 || report.UsersScanned != 1 || report.AssignedCount != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"start", "migrate", "sweep"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("missing %s command: %v", name, err)
		}
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := runMigrations(context.Background(), path); err == nil {
		t.Fatalf("expected error without postgres url")
	}
}

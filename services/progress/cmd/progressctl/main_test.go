package main

import (
	"bytes"
	"strings"
	"testing"
)

func execute(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"migrate", "seed-courses", "summary", "certify", "reindex"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered", name)
		}
	}
}

func TestSummaryRequiresFlags(t *testing.T) {
	_, err := execute("summary", "--database-url", "postgres://unused", "--user", "u1")
	if err == nil || !strings.Contains(err.Error(), "--course") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func TestCertifyRejectsUnknownScheme(t *testing.T) {
	_, err := execute("certify", "--database-url", "postgres://unused", "--user", "u1", "--course", "c1", "--id-scheme", "sequential")
	if err == nil {
		t.Fatal("expected error for unknown id scheme")
	}
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute("migrate", "--database-url", "")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestSeedCoursesRejectsMissingFile(t *testing.T) {
	_, err := execute("seed-courses", "/nonexistent/catalog.yaml")
	if err == nil {
		t.Fatal("expected error for missing catalog file")
	}
}

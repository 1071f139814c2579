package db

import (
	"strings"
	"testing"
)

func TestUpMigrations(t *testing.T) {
	names, err := upMigrations()
	if err != nil {
		t.Fatalf("upMigrations: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no embedded migrations")
	}
	for i, n := range names {
		if !strings.HasSuffix(n, ".up.sql") {
			t.Errorf("unexpected migration %q", n)
		}
		if i > 0 && names[i-1] > n {
			t.Errorf("migrations not sorted: %v", names)
		}
	}

	b, err := migrationsFS.ReadFile("migrations/" + names[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS transactions") {
		t.Error("first migration does not create the transactions table")
	}
}

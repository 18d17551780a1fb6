package database

import (
	"strings"
	"testing"
)

func TestConfigDSN(t *testing.T) {
	t.Parallel()

	cfg := Config{Host: "db", Port: "6543", User: "iconic", Password: "s3cret", Name: "iconic", SSLMode: "require"}
	want := "host=db port=6543 user=iconic password=s3cret dbname=iconic sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN()=%q want=%q", got, want)
	}

	cfg.URL = "postgres://u:p@h:5432/x"
	if got := cfg.DSN(); got != cfg.URL {
		t.Fatalf("URL must win, got %q", got)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	t.Parallel()

	for _, table := range []string{"events", "event_participations", "event_checkins", "live_events", "live_match_groups", "live_match_participants", "iconic_wallets", "iconic_payments", "user_photos"} {
		if !strings.Contains(Schema(), "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Fatalf("schema missing table %s", table)
		}
	}
}

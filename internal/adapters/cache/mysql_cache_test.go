package cache

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestEnsureParseTime(t *testing.T) {
	cases := []string{
		"user:password@tcp(localhost:3306)/mail_classifier",
		"user:password@tcp(localhost:3306)/mail_classifier?parseTime=false",
		"user:password@tcp(localhost:3306)/mail_classifier?parseTime=true&charset=utf8mb4",
	}
	for _, dsn := range cases {
		got, err := ensureParseTime(dsn)
		if err != nil {
			t.Fatalf("ensureParseTime(%q): %v", dsn, err)
		}
		cfg, err := mysql.ParseDSN(got)
		if err != nil {
			t.Fatalf("result %q does not parse: %v", got, err)
		}
		if !cfg.ParseTime {
			t.Fatalf("parseTime not set in %q", got)
		}
		if cfg.DBName != "mail_classifier" {
			t.Fatalf("database name mangled in %q", got)
		}
	}

	if _, err := ensureParseTime("://not a dsn"); err == nil {
		t.Fatal("expected error for malformed DSN")
	}

	got, err := ensureParseTime(cases[2])
	if err != nil {
		t.Fatalf("ensureParseTime(%q): %v", cases[2], err)
	}
	if !strings.Contains(got, "charset=utf8mb4") {
		t.Fatalf("existing params dropped: %q", got)
	}
}

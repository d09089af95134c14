package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// testKey is a fixed 32-byte AES-256 key for credential tests.
var testKey = []byte("0123456789abcdef0123456789abcdef")

// setupTestDB returns a migrated, shared in-memory database private to t.
// Writer and reader handles reach the same data through cache=shared.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// The test name is escaped so subtests with slashes or spaces stay a
	// single URI filename component.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	db := &DB{
		Writer: openTestConn(t, dsn, 1),
		Reader: openTestConn(t, dsn, 4),
		path:   dsn,
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

func openTestConn(t *testing.T, dsn string, maxOpen int) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	conn.SetMaxOpenConns(maxOpen)
	if err := conn.PingContext(context.Background()); err != nil {
		_ = conn.Close()
		t.Fatalf("ping test db: %v", err)
	}
	return conn
}

func newTestCredential(owner string) model.Credential {
	return model.Credential{
		OwnerID:         owner,
		AppKey:          "app-key",
		SignatureSecret: "sig-secret",
		APIToken:        "api-token",
		RefreshToken:    "refresh-token",
		Host:            "zeus.accurate.id",
	}
}

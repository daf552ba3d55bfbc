package database

import (
	"context"
	"testing"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if got := db.Client.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}
}

func TestOpen_Rejects(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("expected error for unsupported driver")
	}
	if _, err := Open(context.Background(), DriverPostgres, ""); err == nil {
		t.Error("expected error for empty dsn")
	}
}

func TestClose_Nil(t *testing.T) {
	var d *DB
	if err := d.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}

package weight

import (
	"path/filepath"
	"testing"
	"time"
)

func TestCheckpoint_SaveAndRestoreRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weights.db")
	db, err := OpenCheckpointDB(dbPath)
	if err != nil {
		t.Fatalf("OpenCheckpointDB: %v", err)
	}
	defer db.Close()

	m1 := New(Config{})
	m1.Register("a", 1.0)
	m1.ReportOutcome("a", 200*time.Millisecond, 0.002, true, 1.0)
	m1.ReportOutcome("a", 300*time.Millisecond, 0.003, true, 1.0)

	if err := m1.SaveCheckpoint(db); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	m2 := New(Config{})
	m2.Register("a", 1.0)
	if err := m2.RestoreCheckpoint(db); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}

	snap1, _ := m1.Snapshot("a")
	snap2, _ := m2.Snapshot("a")
	if snap2.EMAResponseTime != snap1.EMAResponseTime {
		t.Errorf("expected restored EMA response time %v, got %v", snap1.EMAResponseTime, snap2.EMAResponseTime)
	}
	if snap2.EMACost != snap1.EMACost {
		t.Errorf("expected restored EMA cost %v, got %v", snap1.EMACost, snap2.EMACost)
	}
}

func TestCheckpoint_RestoreIgnoresUnregisteredProviders(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weights.db")
	db, err := OpenCheckpointDB(dbPath)
	if err != nil {
		t.Fatalf("OpenCheckpointDB: %v", err)
	}
	defer db.Close()

	m1 := New(Config{})
	m1.Register("gone", 1.0)
	m1.ReportOutcome("gone", 100*time.Millisecond, 0.001, true, 1.0)
	if err := m1.SaveCheckpoint(db); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	m2 := New(Config{})
	m2.Register("other", 1.0)
	if err := m2.RestoreCheckpoint(db); err != nil {
		t.Fatalf("RestoreCheckpoint: %v", err)
	}

	snap, ok := m2.Snapshot("other")
	if !ok {
		t.Fatal("expected other to still be registered")
	}
	if snap.EMAResponseTime != 0 {
		t.Errorf("expected cold-start default for unrelated provider, got %v", snap.EMAResponseTime)
	}
}

func TestCheckpoint_RestoreFromEmptyDatabaseIsNoop(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weights.db")
	db, err := OpenCheckpointDB(dbPath)
	if err != nil {
		t.Fatalf("OpenCheckpointDB: %v", err)
	}
	defer db.Close()

	m := New(Config{})
	m.Register("a", 1.0)
	if err := m.RestoreCheckpoint(db); err != nil {
		t.Fatalf("expected no error restoring from an empty database: %v", err)
	}
}

package storage

import (
	"testing"
)

func appliedMigrations(t *testing.T, s *Store) []int {
	t.Helper()
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		t.Fatalf("querying schema_version: %v", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scanning version: %v", err)
		}
		versions = append(versions, v)
	}
	return versions
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1 := appliedMigrations(t, s1)
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2 := appliedMigrations(t, s2)

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions := appliedMigrations(t, s)
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_projects_user_status", "idx_videos_project", "idx_agents_video", "idx_shares_project", "idx_jobs_status", "idx_jobs_subject"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_init.sql")
	if err != nil {
		t.Fatalf("parseMigrationVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

func TestProfileKeyRoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetProfileKey("u1", "niche", "woodworking"); err != nil {
		t.Fatalf("SetProfileKey: %v", err)
	}
	if err := s.SetProfileKey("u1", "niche", "metalworking"); err != nil {
		t.Fatalf("SetProfileKey overwrite: %v", err)
	}
	got, err := s.GetProfileKey("u1", "niche")
	if err != nil {
		t.Fatalf("GetProfileKey: %v", err)
	}
	if got != "metalworking" {
		t.Errorf("niche = %q, want %q", got, "metalworking")
	}

	if _, err := s.GetProfileKey("u2", "niche"); err != ErrNotFound {
		t.Errorf("other user's key: err = %v, want ErrNotFound", err)
	}
}

func TestGetAllProfileKeys(t *testing.T) {
	s := openTestStore(t)

	for k, v := range map[string]string{"tone": "casual", "channel_name": "Shop Talk"} {
		if err := s.SetProfileKey("u1", k, v); err != nil {
			t.Fatalf("SetProfileKey(%s): %v", k, err)
		}
	}
	if err := s.SetProfileKey("u2", "tone", "formal"); err != nil {
		t.Fatalf("SetProfileKey: %v", err)
	}

	all, err := s.GetAllProfileKeys("u1")
	if err != nil {
		t.Fatalf("GetAllProfileKeys: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all["tone"] != "casual" {
		t.Errorf("tone = %q, want %q", all["tone"], "casual")
	}

	if err := s.DeleteProfileKey("u1", "tone"); err != nil {
		t.Fatalf("DeleteProfileKey: %v", err)
	}
	all, _ = s.GetAllProfileKeys("u1")
	if _, ok := all["tone"]; ok {
		t.Error("tone still present after delete")
	}
}


package manager

import "testing"

func TestDirectoryRegisterIsIdempotentAndDeduplicates(t *testing.T) {
	d := NewDirectory(nil)

	size := d.Register("f.txt", 0, "http://n1", 3)
	if size != 1 {
		t.Fatalf("first Register size = %d, want 1", size)
	}
	size = d.Register("f.txt", 0, "http://n1", 3)
	if size != 1 {
		t.Fatalf("duplicate Register size = %d, want 1 (no duplicate replica)", size)
	}
	size = d.Register("f.txt", 0, "http://n2", 3)
	if size != 2 {
		t.Fatalf("second distinct Register size = %d, want 2", size)
	}

	replicas := d.ChunkReplicas("f.txt", 0)
	if len(replicas) != 2 || replicas[0].NodeURL != "http://n1" || replicas[1].NodeURL != "http://n2" {
		t.Fatalf("unexpected replica set: %+v", replicas)
	}
	for _, r := range replicas {
		if !r.Committed {
			t.Fatalf("replica %+v should be committed after Register", r)
		}
	}
}

func TestDirectoryAppendInFlightPromotedByRegister(t *testing.T) {
	d := NewDirectory(nil)
	d.AppendInFlight("f.txt", 0, "http://n1")

	replicas := d.ChunkReplicas("f.txt", 0)
	if len(replicas) != 1 || replicas[0].Committed {
		t.Fatalf("expected one in-flight replica, got %+v", replicas)
	}

	d.Register("f.txt", 0, "http://n1", 1)
	replicas = d.ChunkReplicas("f.txt", 0)
	if len(replicas) != 1 || !replicas[0].Committed {
		t.Fatalf("expected the in-flight replica to be promoted to committed, got %+v", replicas)
	}
}

func TestDirectoryDownloadLocationsPrefersCommitted(t *testing.T) {
	d := NewDirectory(nil)
	d.AppendInFlight("f.txt", 0, "http://pending")
	d.Register("f.txt", 0, "http://committed", 1)

	locs, total, ok := d.DownloadLocations("f.txt", func(string) bool { return true })
	if !ok || total != 1 {
		t.Fatalf("DownloadLocations ok=%v total=%d", ok, total)
	}
	if locs[0] != "http://committed" {
		t.Fatalf("locations[0] = %q, want http://committed", locs[0])
	}
}

func TestDirectoryDownloadLocationsFallsBackToInFlightWhenNoCommittedActive(t *testing.T) {
	d := NewDirectory(nil)
	d.AppendInFlight("f.txt", 0, "http://pending")

	locs, _, ok := d.DownloadLocations("f.txt", func(string) bool { return true })
	if !ok || locs[0] != "http://pending" {
		t.Fatalf("expected fallback to in-flight replica, got %v ok=%v", locs, ok)
	}
}

func TestDirectoryDownloadLocationsNotFound(t *testing.T) {
	d := NewDirectory(nil)
	if _, _, ok := d.DownloadLocations("missing.txt", func(string) bool { return true }); ok {
		t.Fatal("expected ok=false for unknown filename")
	}

	d.Register("f.txt", 0, "http://n1", 1)
	if _, _, ok := d.DownloadLocations("f.txt", func(string) bool { return false }); ok {
		t.Fatal("expected ok=false when every holder is inactive")
	}
}

func TestDirectoryRemoveReplica(t *testing.T) {
	d := NewDirectory(nil)
	d.Register("f.txt", 0, "http://n1", 1)
	d.Register("f.txt", 0, "http://n2", 1)

	if !d.RemoveReplica("f.txt", 0, "http://n1") {
		t.Fatal("expected RemoveReplica to report removal")
	}
	if d.RemoveReplica("f.txt", 0, "http://n1") {
		t.Fatal("expected second RemoveReplica of the same node to report false")
	}
	replicas := d.ChunkReplicas("f.txt", 0)
	if len(replicas) != 1 || replicas[0].NodeURL != "http://n2" {
		t.Fatalf("unexpected replica set after removal: %+v", replicas)
	}
}

func TestDirectoryRemoveDropsEntryAndReturnsNodeURLs(t *testing.T) {
	d := NewDirectory(nil)
	d.Register("f.txt", 0, "http://n1", 2)
	d.Register("f.txt", 1, "http://n2", 2)
	d.Register("f.txt", 1, "http://n1", 2)

	byNode, ok := d.Remove("f.txt")
	if !ok {
		t.Fatal("expected Remove to report found")
	}
	if len(byNode) != 2 {
		t.Fatalf("expected 2 distinct node urls, got %v", byNode)
	}
	if got := byNode["http://n1"]; len(got) != 2 {
		t.Fatalf("expected n1 to hold chunks 0 and 1, got %v", got)
	}

	if _, ok := d.Remove("f.txt"); ok {
		t.Fatal("expected second Remove to report not found")
	}
	if _, _, ok := d.DownloadLocations("f.txt", func(string) bool { return true }); ok {
		t.Fatal("expected DownloadLocations to fail after Remove")
	}
}

func TestDirectoryListReturnsDetachedSnapshot(t *testing.T) {
	d := NewDirectory(nil)
	d.Register("f.txt", 0, "http://n1", 1)

	snap := d.List()
	snap["f.txt"].Chunks[0][0] = Replica{NodeURL: "http://mutated"}

	replicas := d.ChunkReplicas("f.txt", 0)
	if replicas[0].NodeURL != "http://n1" {
		t.Fatalf("List snapshot was not detached: directory mutated to %+v", replicas)
	}
}

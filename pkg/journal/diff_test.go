package journal

import (
	"path/filepath"
	"sort"
	"testing"
)

func buildJournal(t *testing.T, name string, records []HashRecord) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	j, err := Create(path, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, r := range records {
		if err := j.WriteRecord(r); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	return j
}

func sortDiffs(d []Difference) {
	sort.Slice(d, func(i, j int) bool {
		if d[i].FileID != d[j].FileID {
			return d[i].FileID < d[j].FileID
		}
		return d[i].Offset < d[j].Offset
	})
}

func TestDiff_IdenticalJournalsAreEmpty(t *testing.T) {
	records := []HashRecord{
		{Hash: 0xaa, Offset: 0, Size: 4096, FileID: 1},
		{Hash: 0xbb, Offset: 4096, Size: 4096, FileID: 1},
	}
	a := buildJournal(t, "a.draftjournal", records)
	defer a.Close()
	b := buildJournal(t, "b.draftjournal", records)
	defer b.Close()

	diffs, err := Diff(a, b)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) != 0 {
		t.Fatalf("Diff(a, a-content) = %+v, want empty", diffs)
	}
}

func TestDiff_SelfDiffIsAlwaysEmpty(t *testing.T) {
	records := []HashRecord{
		{Hash: 0x01, Offset: 0, Size: 4096, FileID: 1},
		{Hash: 0x02, Offset: 4096, Size: 4096, FileID: 2},
	}
	a := buildJournal(t, "self.draftjournal", records)
	defer a.Close()

	diffs, err := Diff(a, a)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) != 0 {
		t.Fatalf("Diff(a, a) = %+v, want empty", diffs)
	}
}

func TestDiff_DetectsMismatchAndOneSided(t *testing.T) {
	aRecords := []HashRecord{
		{Hash: 0x11, Offset: 0, Size: 4096, FileID: 1},    // matches in B
		{Hash: 0x22, Offset: 4096, Size: 4096, FileID: 1}, // mismatches in B
		{Hash: 0x33, Offset: 8192, Size: 4096, FileID: 1}, // only in A
	}
	bRecords := []HashRecord{
		{Hash: 0x11, Offset: 0, Size: 4096, FileID: 1},
		{Hash: 0x99, Offset: 4096, Size: 4096, FileID: 1},
		{Hash: 0x44, Offset: 0, Size: 2048, FileID: 2}, // only in B
	}
	a := buildJournal(t, "a.draftjournal", aRecords)
	defer a.Close()
	b := buildJournal(t, "b.draftjournal", bRecords)
	defer b.Close()

	diffs, err := Diff(a, b)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(diffs) != 3 {
		t.Fatalf("Diff found %d differences, want 3: %+v", len(diffs), diffs)
	}
	sortDiffs(diffs)

	if diffs[0].FileID != 1 || diffs[0].Offset != 4096 || diffs[0].HashA != 0x22 || diffs[0].HashB != 0x99 {
		t.Fatalf("mismatch diff = %+v", diffs[0])
	}
	if diffs[1].FileID != 1 || diffs[1].Offset != 8192 || diffs[1].HashA != 0x33 || diffs[1].HashB != 0 {
		t.Fatalf("one-sided A diff = %+v", diffs[1])
	}
	if diffs[2].FileID != 2 || diffs[2].Offset != 0 || diffs[2].HashA != 0 || diffs[2].HashB != 0x44 {
		t.Fatalf("one-sided B diff = %+v", diffs[2])
	}
}

func TestDiff_IsSymmetric(t *testing.T) {
	aRecords := []HashRecord{
		{Hash: 0x11, Offset: 0, Size: 4096, FileID: 1},
		{Hash: 0x22, Offset: 4096, Size: 4096, FileID: 1},
	}
	bRecords := []HashRecord{
		{Hash: 0x11, Offset: 0, Size: 4096, FileID: 1},
		{Hash: 0x99, Offset: 4096, Size: 4096, FileID: 1},
	}
	a := buildJournal(t, "a.draftjournal", aRecords)
	defer a.Close()
	b := buildJournal(t, "b.draftjournal", bRecords)
	defer b.Close()

	ab, err := Diff(a, b)
	if err != nil {
		t.Fatalf("Diff(a, b): %v", err)
	}
	ba, err := Diff(b, a)
	if err != nil {
		t.Fatalf("Diff(b, a): %v", err)
	}
	if len(ab) != len(ba) {
		t.Fatalf("Diff(a,b) has %d entries, Diff(b,a) has %d", len(ab), len(ba))
	}
	sortDiffs(ab)
	sortDiffs(ba)
	for i := range ab {
		if ab[i].FileID != ba[i].FileID || ab[i].Offset != ba[i].Offset ||
			ab[i].HashA != ba[i].HashB || ab[i].HashB != ba[i].HashA {
			t.Fatalf("asymmetry at %d: ab=%+v ba=%+v", i, ab[i], ba[i])
		}
	}
}

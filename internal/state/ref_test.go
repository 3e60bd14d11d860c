package state_test

import (
	"testing"

	"github.com/brandon/mboxadmin/internal/state"
	"github.com/brandon/mboxadmin/pkg/types"
)

func makeSnapshot(names ...string) *state.Snapshot {
	boxes := make([]*types.Mailbox, len(names))
	for i, n := range names {
		boxes[i] = &types.Mailbox{Name: n, Delimiter: "."}
	}
	return state.NewSnapshot(boxes)
}

// TestRefIteration tests the reset/next cursor protocol
func TestRefIteration(t *testing.T) {
	ref := state.NewRef(makeSnapshot("A", "B", "C"))

	var seen []string
	for ref.Next() {
		seen = append(seen, ref.Mailbox().Name)
	}
	if len(seen) != 3 || seen[0] != "A" || seen[2] != "C" {
		t.Errorf("Expected [A B C], got %v", seen)
	}

	// Exhausted cursor stays exhausted.
	if ref.Next() {
		t.Error("Expected Next to keep returning false after exhaustion")
	}

	// Reset rewinds to before the first entry.
	ref.Reset()
	if !ref.Next() || ref.Mailbox().Name != "A" {
		t.Error("Expected Reset+Next to land on the first entry")
	}
}

// TestRefIterationNone tests iteration over the zero ref
func TestRefIterationNone(t *testing.T) {
	var ref state.Ref
	if !ref.IsNone() {
		t.Error("Expected zero ref to be none")
	}
	if ref.Next() {
		t.Error("Expected Next on none ref to return false")
	}
	if ref.Valid() {
		t.Error("Expected none ref to be invalid")
	}
}

// TestRefSearch tests exact, case-sensitive name lookup
func TestRefSearch(t *testing.T) {
	ref := state.NewRef(makeSnapshot("INBOX", "INBOX.Sales", "INBOX.sales"))

	found, ok := ref.Search("INBOX.sales")
	if !ok {
		t.Fatal("Expected to find INBOX.sales")
	}
	if found.Index() != 2 {
		t.Errorf("Expected index 2, got %d", found.Index())
	}

	if _, ok := ref.Search("inbox"); ok {
		t.Error("Expected case-sensitive search to miss 'inbox'")
	}
}

// TestRefRecurse tests subtree enumeration: rooted at A it must yield
// A, A.X, A.X.Y in snapshot order and never B
func TestRefRecurse(t *testing.T) {
	ref := state.NewRef(makeSnapshot("A", "A.X", "A.X.Y", "B"))
	root, ok := ref.Search("A")
	if !ok {
		t.Fatal("Expected to find A")
	}

	res := state.NewResolver(types.Namespaces{})
	var names []string
	pos := -1
	for root.Recurse(&pos, res) {
		names = append(names, root.At(pos).Name)
	}

	want := []string{"A", "A.X", "A.X.Y"}
	if len(names) != len(want) {
		t.Fatalf("Expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, names)
			break
		}
	}
}

// TestRefRecurseNamespaceBoundary tests that recursion does not treat a
// shared folder as a descendant of a personal one
func TestRefRecurseNamespaceBoundary(t *testing.T) {
	ref := state.NewRef(makeSnapshot("shared", "shared.docs", "shared.docs.old"))
	root, _ := ref.Search("shared")

	res := state.NewResolver(types.Namespaces{
		Shared: []types.NamespaceDesc{{Prefix: "shared.docs", Delimiter: "."}},
	})
	var names []string
	pos := -1
	for root.Recurse(&pos, res) {
		names = append(names, root.At(pos).Name)
	}

	// shared.docs and below classify into the shared namespace while the
	// root is personal, so only the root itself is yielded.
	if len(names) != 1 || names[0] != "shared" {
		t.Errorf("Expected recursion to stop at the namespace boundary, got %v", names)
	}
}

// TestRefAppendCopyOnWrite tests that Append produces a longer snapshot
// sharing the original records, without disturbing earlier cursors
func TestRefAppendCopyOnWrite(t *testing.T) {
	before := state.NewRef(makeSnapshot("A", "A.X", "B"))

	after, ok := before.Append("A.Z", ".")
	if !ok {
		t.Fatal("Expected Append to succeed")
	}
	if after.Len() != 4 {
		t.Errorf("Expected new snapshot length 4, got %d", after.Len())
	}
	if before.Len() != 3 {
		t.Errorf("Expected original snapshot length 3, got %d", before.Len())
	}
	for i := 0; i < 3; i++ {
		if before.At(i) != after.At(i) {
			t.Errorf("Expected entry %d to be shared between snapshots", i)
		}
	}
	if !after.Valid() || after.Mailbox().Name != "A.Z" {
		t.Error("Expected the returned ref to point at the appended record")
	}
}

// TestRefAppendNone tests that Append on a none ref is a no-op
func TestRefAppendNone(t *testing.T) {
	var ref state.Ref
	if _, ok := ref.Append("X", "."); ok {
		t.Error("Expected Append on none ref to fail")
	}
}

// TestRefDelete tests removal by reference and by name
func TestRefDelete(t *testing.T) {
	ref := state.NewRef(makeSnapshot("A", "B", "C"))

	target, _ := ref.Search("B")
	after, ok := ref.Delete(target)
	if !ok {
		t.Fatal("Expected Delete to succeed")
	}
	if after.Len() != 2 {
		t.Errorf("Expected length 2 after delete, got %d", after.Len())
	}
	if _, ok := after.Search("B"); ok {
		t.Error("Expected B to be gone")
	}
	if ref.Len() != 3 {
		t.Error("Expected the original snapshot to be untouched")
	}

	// Cross-snapshot delete falls back to matching by name.
	other := state.NewRef(makeSnapshot("C"))
	byName, _ := other.Search("C")
	after2, ok := after.Delete(byName)
	if !ok || after2.Len() != 1 {
		t.Error("Expected cross-snapshot delete by name to succeed")
	}

	// Deleting something that is in neither snapshot fails.
	missing, _ := state.NewRef(makeSnapshot("Z")).Search("Z")
	if _, ok := after2.Delete(missing); ok {
		t.Error("Expected delete of unknown mailbox to fail")
	}
}

package state_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mboxadmin/internal/state"
	"github.com/brandon/mboxadmin/pkg/types"
)

// fakeFetcher is an in-memory protocol collaborator that counts calls
type fakeFetcher struct {
	folders []*types.Mailbox
	users   map[types.NamespaceKind][]*types.Mailbox
	headers []*types.Header
	rights  map[string]string
	quotas  map[string]types.Quota

	folderCalls int
	lastDetail  state.DetailLevel
	userCalls   int
	headerCalls int
	rightsCalls map[string]int
	quotaCalls  map[string]int
	selectCalls int

	failFolders bool
	failHeaders bool
	failSelect  bool
	grantRO     bool
}

func newFakeFetcher(names ...string) *fakeFetcher {
	f := &fakeFetcher{
		users:       make(map[types.NamespaceKind][]*types.Mailbox),
		rights:      make(map[string]string),
		quotas:      make(map[string]types.Quota),
		rightsCalls: make(map[string]int),
		quotaCalls:  make(map[string]int),
	}
	for _, n := range names {
		f.folders = append(f.folders, &types.Mailbox{Name: n, Delimiter: "."})
	}
	return f
}

func (f *fakeFetcher) FetchFolders(qualifier, filter string, detail state.DetailLevel) ([]*types.Mailbox, error) {
	f.folderCalls++
	f.lastDetail = detail
	if f.failFolders {
		return nil, errors.New("listing failed")
	}
	// Fresh records every fetch, like a real reload.
	boxes := make([]*types.Mailbox, len(f.folders))
	for i, b := range f.folders {
		clone := *b
		clone.Extra = nil
		boxes[i] = &clone
	}
	return boxes, nil
}

func (f *fakeFetcher) FetchUsers(kind types.NamespaceKind) ([]*types.Mailbox, error) {
	f.userCalls++
	return f.users[kind], nil
}

func (f *fakeFetcher) FetchHeaders(mailbox string) ([]*types.Header, error) {
	f.headerCalls++
	if f.failHeaders {
		return nil, errors.New("fetch failed")
	}
	return f.headers, nil
}

func (f *fakeFetcher) FetchQuota(mailbox string) (types.Quota, error) {
	f.quotaCalls[mailbox]++
	return f.quotas[mailbox], nil
}

func (f *fakeFetcher) FetchRights(mailbox string) (string, error) {
	f.rightsCalls[mailbox]++
	r, ok := f.rights[mailbox]
	if !ok {
		return "", errors.New("no such mailbox")
	}
	return r, nil
}

func (f *fakeFetcher) SelectMailbox(name string, readOnly bool) (bool, error) {
	f.selectCalls++
	if f.failSelect {
		return false, errors.New("select failed")
	}
	return readOnly || f.grantRO, nil
}

func (f *fakeFetcher) CreateFolder(name string) error { return nil }

func (f *fakeFetcher) DeleteFolder(name string) error { return nil }

func (f *fakeFetcher) RenameFolder(oldName, newName string) error { return nil }

func (f *fakeFetcher) Namespaces() (types.Namespaces, error) {
	return types.Namespaces{}, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestState(f *fakeFetcher, opts state.Options) *state.State {
	s := state.New(f, opts, testLogger())
	s.SetQualifier("")
	s.SetFilter("*")
	return s
}

func cachedOpts() state.Options {
	return state.Options{Caching: true}
}

// TestLoadShortCircuit tests that a second Load of a valid category costs
// no collaborator call
func TestLoadShortCircuit(t *testing.T) {
	f := newFakeFetcher("INBOX", "INBOX.Sales")
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Folders); err != nil {
		t.Fatalf("Expected load to succeed, got %v", err)
	}
	if err := s.Load(state.Folders); err != nil {
		t.Fatalf("Expected second load to succeed, got %v", err)
	}
	if f.folderCalls != 1 {
		t.Errorf("Expected exactly 1 folder fetch, got %d", f.folderCalls)
	}
	if s.Folders().Len() != 2 {
		t.Errorf("Expected 2 folders, got %d", s.Folders().Len())
	}
}

// TestValidityInvariant tests that the per-folder categories are never
// valid without the folder listing, across arbitrary load/clear sequences
func TestValidityInvariant(t *testing.T) {
	f := newFakeFetcher("INBOX")
	f.rights["INBOX"] = "lrswipkxte"
	s := newTestState(f, cachedOpts())

	check := func(step string) {
		t.Helper()
		if s.Valid(state.Details) && !s.Valid(state.Folders) {
			t.Errorf("%s: Details valid without Folders", step)
		}
		if s.Valid(state.Quota) && !s.Valid(state.Folders) {
			t.Errorf("%s: Quota valid without Folders", step)
		}
		if s.Valid(state.Rights) && !s.Valid(state.Folders) {
			t.Errorf("%s: Rights valid without Folders", step)
		}
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"load details", func() error { return s.Load(state.Details) }},
		{"load rights", func() error { return s.Load(state.Rights) }},
		{"clear folders", func() error { s.Clear(state.Folders); return nil }},
		{"load quota", func() error { return s.Load(state.Quota) }},
		{"clear details only", func() error { s.Clear(state.Details); return nil }},
		{"reload everything", func() error { return s.Load(state.Folders | state.Details | state.Rights) }},
		{"clear all", func() error { s.Clear(state.AllCategories); return nil }},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		check(step.name)
	}
}

// TestClearFoldersCascades tests that clearing the listing invalidates the
// per-folder categories and that a details load then refetches once with
// a sufficient detail level
func TestClearFoldersCascades(t *testing.T) {
	f := newFakeFetcher("INBOX")
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Folders | state.Details); err != nil {
		t.Fatalf("Expected load to succeed, got %v", err)
	}
	if f.lastDetail != state.DetailCounts {
		t.Errorf("Expected a counts-level fetch, got %v", f.lastDetail)
	}

	s.Clear(state.Folders)
	if s.Valid(state.Details) || s.Valid(state.Folders) {
		t.Fatal("Expected folders and details to be invalid after clear")
	}
	if !s.Folders().IsNone() {
		t.Error("Expected the listing snapshot to be dropped")
	}

	calls := f.folderCalls
	if err := s.Load(state.Details); err != nil {
		t.Fatalf("Expected reload to succeed, got %v", err)
	}
	if f.folderCalls != calls+1 {
		t.Errorf("Expected exactly one refetch, got %d", f.folderCalls-calls)
	}
	if f.lastDetail != state.DetailCounts {
		t.Errorf("Expected the refetch to carry counts, got %v", f.lastDetail)
	}
	if !s.Valid(state.Folders | state.Details) {
		t.Error("Expected folders and details valid after reload")
	}
}

// TestDetailsUpgradesPlainListing tests that asking for details when only
// a plain listing is cached replaces the listing
func TestDetailsUpgradesPlainListing(t *testing.T) {
	f := newFakeFetcher("INBOX")
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(state.Details); err != nil {
		t.Fatal(err)
	}
	if f.folderCalls != 2 {
		t.Errorf("Expected a second fetch for the detail upgrade, got %d calls", f.folderCalls)
	}
	if f.lastDetail != state.DetailCounts {
		t.Errorf("Expected counts detail, got %v", f.lastDetail)
	}
}

// TestLoadFailureLeavesStateUnchanged tests the all-or-nothing rule
func TestLoadFailureLeavesStateUnchanged(t *testing.T) {
	f := newFakeFetcher("INBOX")
	f.failFolders = true
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Folders); err == nil {
		t.Fatal("Expected load to fail")
	}
	if s.Valid(state.Folders) {
		t.Error("Expected folders to stay invalid after a failed fetch")
	}
	if !s.Folders().IsNone() {
		t.Error("Expected no partial snapshot after a failed fetch")
	}
}

// TestCachingDisabledAlwaysRefetches tests that with caching off every
// load re-fetches even immediately after a successful one
func TestCachingDisabledAlwaysRefetches(t *testing.T) {
	f := newFakeFetcher("INBOX")
	s := newTestState(f, state.Options{Caching: false})

	for i := 0; i < 3; i++ {
		if err := s.Load(state.Folders); err != nil {
			t.Fatalf("Expected load %d to succeed, got %v", i, err)
		}
	}
	if f.folderCalls != 3 {
		t.Errorf("Expected 3 fetches with caching disabled, got %d", f.folderCalls)
	}
}

// TestExpireByLifetime tests TTL-based expiry with a fake clock
func TestExpireByLifetime(t *testing.T) {
	f := newFakeFetcher("INBOX")
	now := time.Unix(1700000000, 0)
	opts := state.Options{
		Caching:  true,
		Lifetime: time.Minute,
		Now:      func() time.Time { return now },
	}
	s := newTestState(f, opts)

	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}

	// Within the lifetime the cache is reused.
	now = now.Add(30 * time.Second)
	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	if f.folderCalls != 1 {
		t.Errorf("Expected no refetch within the lifetime, got %d calls", f.folderCalls)
	}

	// Past the lifetime the category expires and reloads.
	now = now.Add(2 * time.Minute)
	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	if f.folderCalls != 2 {
		t.Errorf("Expected a refetch after expiry, got %d calls", f.folderCalls)
	}
}

// TestOpenMailbox tests open/close transitions including the fail-safe on
// selection failure
func TestOpenMailbox(t *testing.T) {
	f := newFakeFetcher("INBOX", "INBOX.Sales")
	f.headers = []*types.Header{{Index: 1, UID: 100}}
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	ref, ok := s.Folders().Search("INBOX.Sales")
	if !ok {
		t.Fatal("Expected to find INBOX.Sales")
	}

	if err := s.OpenMailbox(ref, true); err != nil {
		t.Fatalf("Expected open to succeed, got %v", err)
	}
	cur, open := s.Current()
	if !open || cur.Mailbox().Name != "INBOX.Sales" {
		t.Error("Expected INBOX.Sales to be current")
	}
	if !s.CurrentReadOnly() {
		t.Error("Expected the granted read-only mode to be recorded")
	}

	if err := s.Load(state.Headers); err != nil {
		t.Fatalf("Expected headers to load, got %v", err)
	}
	if len(s.Headers()) != 1 {
		t.Errorf("Expected 1 header, got %d", len(s.Headers()))
	}

	// Opening another mailbox drops the previous headers.
	inbox, _ := s.Folders().Search("INBOX")
	if err := s.OpenMailbox(inbox, false); err != nil {
		t.Fatal(err)
	}
	if s.Valid(state.Headers) || s.Headers() != nil {
		t.Error("Expected headers to be dropped on re-open")
	}

	// A failed select leaves nothing current.
	f.failSelect = true
	if err := s.OpenMailbox(ref, false); err == nil {
		t.Fatal("Expected open to fail")
	}
	if _, open := s.Current(); open {
		t.Error("Expected no current mailbox after a failed select")
	}

	if s.CloseMailbox() {
		t.Error("Expected CloseMailbox to report nothing was open")
	}
}

// TestHeadersRequireOpenMailbox tests the stale-precondition error
func TestHeadersRequireOpenMailbox(t *testing.T) {
	f := newFakeFetcher("INBOX")
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Headers); !errors.Is(err, state.ErrNotLoaded) {
		t.Errorf("Expected ErrNotLoaded, got %v", err)
	}
}

// TestSetQualifierInvalidates tests that changing the listing criteria
// invalidates the listing while a same-value assignment is a no-op
func TestSetQualifierInvalidates(t *testing.T) {
	f := newFakeFetcher("INBOX")
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}

	// Same value: no invalidation.
	s.SetQualifier("")
	s.SetFilter("*")
	if !s.Valid(state.Folders) {
		t.Error("Expected same-value assignment to keep the cache")
	}

	s.SetQualifier("INBOX.Sales")
	if s.Valid(state.Folders) {
		t.Error("Expected qualifier change to invalidate the listing")
	}

	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	s.SetFilter("%")
	if s.Valid(state.Folders) {
		t.Error("Expected filter change to invalidate the listing")
	}
}

// TestClearKeepsCurrentMailbox tests that clearing categories never closes
// the open mailbox
func TestClearKeepsCurrentMailbox(t *testing.T) {
	f := newFakeFetcher("INBOX")
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	ref, _ := s.Folders().Search("INBOX")
	if err := s.OpenMailbox(ref, false); err != nil {
		t.Fatal(err)
	}

	s.Clear(state.AllCategories)
	if _, open := s.Current(); !open {
		t.Error("Expected the open mailbox to survive Clear")
	}
}

// TestDeleteReloadScenario tests that after a server-side delete plus
// clear/reload the listing omits the deleted folder and carries no stale
// extra data
func TestDeleteReloadScenario(t *testing.T) {
	f := newFakeFetcher("INBOX.Sales", "INBOX.Sales.Old", "INBOX.Sales.New")
	for _, b := range f.folders {
		f.rights[b.Name] = "lrswipkxte"
	}
	s := newTestState(f, cachedOpts())
	s.SetQualifier("INBOX.Sales")
	s.SetFilter("*")

	if err := s.Load(state.Folders | state.Details | state.Rights); err != nil {
		t.Fatal(err)
	}

	// Server-side delete, mirrored into the collaborator's world.
	f.folders = f.folders[:1]
	ref, _ := s.Folders().Search("INBOX.Sales.Old")
	if !s.RemoveFolder(ref) {
		t.Fatal("Expected RemoveFolder to succeed")
	}

	s.Clear(state.Folders)
	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}

	folders := s.Folders()
	if _, ok := folders.Search("INBOX.Sales.Old"); ok {
		t.Error("Expected the deleted folder to be gone after reload")
	}
	for folders.Next() {
		if folders.Mailbox().Extra != nil {
			t.Errorf("Expected no stale extra data on %s", folders.Mailbox().Name)
		}
	}
}

// TestAddFolderKeepsOldCursors tests the cache-sync append path
func TestAddFolderKeepsOldCursors(t *testing.T) {
	f := newFakeFetcher("A", "B")
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	before := s.Folders()

	if !s.AddFolder("A.Z", ".") {
		t.Fatal("Expected AddFolder to succeed")
	}
	if s.Folders().Len() != 3 {
		t.Errorf("Expected 3 folders after add, got %d", s.Folders().Len())
	}
	if before.Len() != 2 {
		t.Errorf("Expected the earlier cursor to still see 2 folders, got %d", before.Len())
	}
}

// TestUsersListing tests the shared/other-users categories
func TestUsersListing(t *testing.T) {
	f := newFakeFetcher("INBOX")
	f.users[types.NamespaceShared] = []*types.Mailbox{{Name: "shared.docs", Delimiter: "."}}
	f.users[types.NamespaceOthers] = []*types.Mailbox{{Name: "user.bob", Delimiter: "."}}
	s := newTestState(f, cachedOpts())

	if err := s.Load(state.Shared | state.Others); err != nil {
		t.Fatal(err)
	}
	if s.Users().Len() != 2 {
		t.Errorf("Expected 2 user entries, got %d", s.Users().Len())
	}

	s.Clear(state.Shared)
	if s.Valid(state.Others) {
		t.Error("Expected clearing one user category to drop the shared snapshot")
	}
	if !s.Users().IsNone() {
		t.Error("Expected the users snapshot to be dropped")
	}
}

// fakePersister implements the persister contract in memory
type fakePersister struct {
	boxes    []*types.Mailbox
	syncedAt time.Time
	saves    int
}

func (p *fakePersister) SaveFolders(qualifier, filter string, boxes []*types.Mailbox) error {
	p.saves++
	p.boxes = boxes
	return nil
}

func (p *fakePersister) LoadFolders(qualifier, filter string) ([]*types.Mailbox, time.Time, error) {
	return p.boxes, p.syncedAt, nil
}

// TestWarmStart tests that a fresh persisted listing primes the Folders
// category while a stale one is ignored
func TestWarmStart(t *testing.T) {
	f := newFakeFetcher("INBOX")
	now := time.Unix(1700000000, 0)
	opts := state.Options{
		Caching:  true,
		Lifetime: time.Hour,
		Now:      func() time.Time { return now },
	}

	p := &fakePersister{
		boxes:    []*types.Mailbox{{Name: "INBOX", Delimiter: "."}},
		syncedAt: now.Add(-10 * time.Minute),
	}
	s := newTestState(f, opts)
	s.SetPersister(p)

	if !s.WarmStart() {
		t.Fatal("Expected warm start to install the listing")
	}
	if err := s.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	if f.folderCalls != 0 {
		t.Errorf("Expected no fetch after warm start, got %d", f.folderCalls)
	}

	// A listing older than the lifetime is not installed.
	p.syncedAt = now.Add(-2 * time.Hour)
	s2 := newTestState(f, opts)
	s2.SetPersister(p)
	if s2.WarmStart() {
		t.Error("Expected stale listing to be rejected")
	}

	// Successful loads are mirrored to the persister.
	if err := s2.Load(state.Folders); err != nil {
		t.Fatal(err)
	}
	if p.saves != 1 {
		t.Errorf("Expected the load to be persisted once, got %d", p.saves)
	}
}

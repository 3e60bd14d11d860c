package state

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mboxadmin/pkg/types"
)

// Category identifies one class of cached server facts. Categories form a
// bitmask so callers can load or clear several at once.
type Category uint8

const (
	// Folders is the mailbox listing for the active qualifier/filter.
	Folders Category = 1 << iota
	// Details are the per-folder message counts.
	Details
	// Quota is the per-folder quota data attached to listing records.
	Quota
	// Rights is the per-folder ACL data attached to listing records.
	Rights
	// Shared is the shared-namespace user listing.
	Shared
	// Others is the other-users-namespace user listing.
	Others
	// Headers is the message header listing of the open mailbox.
	Headers
)

// AllCategories covers every cached category
const AllCategories = Folders | Details | Quota | Rights | Shared | Others | Headers

// categoryNames in bit order, for logging
var categoryNames = map[Category]string{
	Folders: "folders",
	Details: "details",
	Quota:   "quota",
	Rights:  "rights",
	Shared:  "shared",
	Others:  "others",
	Headers: "headers",
}

// String returns a +-joined list of category names
func (c Category) String() string {
	s := ""
	for bit := Folders; bit <= Headers; bit <<= 1 {
		if c&bit != 0 {
			if s != "" {
				s += "+"
			}
			s += categoryNames[bit]
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// Options configures cache behaviour for one session
type Options struct {
	// Caching disables the cache entirely when false: every Expire wipes
	// all categories, so every Load re-fetches.
	Caching bool

	// Lifetime is the maximum age of a loaded category; zero or negative
	// means no time-based expiry.
	Lifetime time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// State is the per-session cache of server-derived facts and the state
// machine that decides when they must be re-fetched. It is single-threaded;
// the command dispatcher runs one operation to completion at a time.
type State struct {
	fetch   Fetcher
	persist Persister
	logger  *logrus.Logger

	caching  bool
	lifetime time.Duration
	now      func() time.Time

	valid    Category
	loadedAt map[Category]time.Time

	folders  Ref
	detailed bool
	users    Ref
	headers  []*types.Header

	current         Ref
	currentOpen     bool
	currentReadOnly bool

	qualifier    string
	qualifierSet bool
	filter       string
	filterSet    bool
}

// New creates the cache state for a freshly authenticated session
func New(fetch Fetcher, opts Options, logger *logrus.Logger) *State {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &State{
		fetch:    fetch,
		logger:   logger,
		caching:  opts.Caching,
		lifetime: opts.Lifetime,
		now:      now,
		loadedAt: make(map[Category]time.Time),
	}
}

// SetPersister attaches an optional store that successful folder listings
// are mirrored to
func (s *State) SetPersister(p Persister) {
	s.persist = p
}

// Valid reports whether every requested category is currently valid
func (s *State) Valid(c Category) bool {
	return s.valid&c == c
}

// Folders returns a rewound cursor over the folder listing
func (s *State) Folders() Ref {
	return s.folders
}

// Users returns a rewound cursor over the user listing
func (s *State) Users() Ref {
	return s.users
}

// Headers returns the header listing of the open mailbox, or nil
func (s *State) Headers() []*types.Header {
	return s.headers
}

// Current returns the open mailbox ref and whether one is open
func (s *State) Current() (Ref, bool) {
	return s.current, s.currentOpen
}

// CurrentReadOnly reports the read-only mode the server actually granted
func (s *State) CurrentReadOnly() bool {
	return s.currentReadOnly
}

// Qualifier returns the active namespace qualifier
func (s *State) Qualifier() string {
	return s.qualifier
}

// Filter returns the active listing filter
func (s *State) Filter() string {
	return s.filter
}

// SetQualifier changes the namespace prefix listings are rooted under.
// Assigning the current value is a no-op; any real change invalidates the
// folder listing and everything derived from it.
func (s *State) SetQualifier(q string) {
	if s.qualifierSet && s.qualifier == q {
		return
	}
	s.qualifier = q
	s.qualifierSet = true
	s.Clear(Folders)
}

// SetFilter changes the listing filter, with the same invalidation rule
func (s *State) SetFilter(f string) {
	if s.filterSet && s.filter == f {
		return
	}
	s.filter = f
	s.filterSet = true
	s.Clear(Folders)
}

// Load makes every requested category valid, fetching the missing ones from
// the collaborator. Already-valid categories cost nothing. On a fetch error
// the failing category and any not yet processed stay exactly as they were.
func (s *State) Load(want Category) error {
	s.Expire()
	missing := want &^ s.valid
	if missing&(Details|Quota|Rights) != 0 {
		// Per-folder data needs a listing to attach to.
		missing |= (Folders &^ s.valid)
	}
	if missing&Details != 0 && s.valid&Folders != 0 && !s.detailed {
		// The cached listing was fetched without counts; replace it.
		missing |= Folders
	}
	if missing == 0 {
		return nil
	}

	if missing&(Folders|Details) != 0 {
		if err := s.loadFolders(missing&Details != 0); err != nil {
			return err
		}
	}
	if missing&(Rights|Quota) != 0 {
		extras := NewExtras(s.fetch, s.logger)
		if err := extras.loadAll(s.folders.snap, missing&Rights != 0, missing&Quota != 0); err != nil {
			return err
		}
		s.markValid(missing & (Rights | Quota))
	}
	if missing&(Shared|Others) != 0 {
		if err := s.loadUsers(missing&Shared != 0, missing&Others != 0); err != nil {
			return err
		}
	}
	if missing&Headers != 0 {
		if err := s.loadHeaders(); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) loadFolders(withDetails bool) error {
	detail := DetailSubscribed
	if withDetails {
		detail = DetailCounts
	}
	boxes, err := s.fetch.FetchFolders(s.qualifier, s.filter, detail)
	if err != nil {
		return fmt.Errorf("failed to load folder listing: %w", err)
	}
	// Replacing the listing orphans any per-folder extras.
	s.valid &^= Details | Quota | Rights
	s.folders = NewRef(NewSnapshot(boxes))
	s.detailed = withDetails
	s.markValid(Folders)
	if withDetails {
		s.markValid(Details)
	}
	if s.persist != nil {
		if err := s.persist.SaveFolders(s.qualifier, s.filter, boxes); err != nil {
			s.logger.WithError(err).Warn("Failed to persist folder listing")
		}
	}
	s.logger.WithFields(logrus.Fields{
		"qualifier": s.qualifier,
		"filter":    s.filter,
		"count":     len(boxes),
		"details":   withDetails,
	}).Debug("Loaded folder listing")
	return nil
}

func (s *State) loadUsers(shared, others bool) error {
	var boxes []*types.Mailbox
	var got Category
	if shared {
		listed, err := s.fetch.FetchUsers(types.NamespaceShared)
		if err != nil {
			return fmt.Errorf("failed to load shared listing: %w", err)
		}
		boxes = append(boxes, listed...)
		got |= Shared
	}
	if others {
		listed, err := s.fetch.FetchUsers(types.NamespaceOthers)
		if err != nil {
			return fmt.Errorf("failed to load user listing: %w", err)
		}
		boxes = append(boxes, listed...)
		got |= Others
	}
	// One snapshot holds whichever kinds were last loaded.
	s.valid &^= Shared | Others
	s.users = NewRef(NewSnapshot(boxes))
	s.markValid(got)
	return nil
}

func (s *State) loadHeaders() error {
	if !s.currentOpen {
		return fmt.Errorf("no mailbox open: %w", ErrNotLoaded)
	}
	headers, err := s.fetch.FetchHeaders(s.current.Mailbox().Name)
	if err != nil {
		return fmt.Errorf("failed to load headers: %w", err)
	}
	s.headers = headers
	s.markValid(Headers)
	s.logger.WithFields(logrus.Fields{
		"mailbox": s.current.Mailbox().Name,
		"count":   len(headers),
	}).Debug("Loaded headers")
	return nil
}

func (s *State) markValid(c Category) {
	s.valid |= c
	t := s.now()
	for bit := Folders; bit <= Headers; bit <<= 1 {
		if c&bit != 0 {
			s.loadedAt[bit] = t
		}
	}
}

// Clear drops validity for the given categories. Clearing Folders cascades
// to the per-folder categories whose data lives on the listing records;
// clearing either user category drops the shared user snapshot. The open
// mailbox itself is never touched, closing it is a distinct operation.
func (s *State) Clear(c Category) {
	if c&Folders != 0 {
		c |= Details | Quota | Rights
	}
	if c&(Shared|Others) != 0 {
		c |= Shared | Others
	}
	if c&s.valid == 0 && !s.anyData(c) {
		return
	}
	s.valid &^= c
	if c&Folders != 0 {
		s.folders = Ref{}
		s.detailed = false
	}
	if c&(Shared|Others) != 0 {
		s.users = Ref{}
	}
	if c&Headers != 0 {
		s.headers = nil
	}
	for bit := Folders; bit <= Headers; bit <<= 1 {
		if c&bit != 0 {
			delete(s.loadedAt, bit)
		}
	}
	s.logger.WithField("categories", c.String()).Debug("Cleared cache categories")
}

func (s *State) anyData(c Category) bool {
	if c&Folders != 0 && !s.folders.IsNone() {
		return true
	}
	if c&(Shared|Others) != 0 && !s.users.IsNone() {
		return true
	}
	if c&Headers != 0 && s.headers != nil {
		return true
	}
	return false
}

// Expire enforces the caching configuration: with caching disabled it wipes
// everything, otherwise it clears categories older than the lifetime.
// Called opportunistically before every Load.
func (s *State) Expire() {
	if !s.caching {
		s.Clear(AllCategories)
		return
	}
	if s.lifetime <= 0 {
		return
	}
	now := s.now()
	var stale Category
	for bit := Folders; bit <= Headers; bit <<= 1 {
		if s.valid&bit == 0 {
			continue
		}
		if now.Sub(s.loadedAt[bit]) > s.lifetime {
			stale |= bit
		}
	}
	if stale != 0 {
		s.logger.WithField("categories", stale.String()).Debug("Expiring stale cache categories")
		s.Clear(stale)
	}
}

// OpenMailbox closes any open mailbox, selects the referenced one and
// records the read-only mode the server granted. On failure no mailbox is
// reported as current. Headers always belong to the previously open
// mailbox, so they are dropped either way.
func (s *State) OpenMailbox(r Ref, readOnly bool) error {
	s.CloseMailbox()
	if !r.Valid() {
		return fmt.Errorf("no mailbox to open: %w", ErrNotFound)
	}
	m := r.Mailbox()
	granted, err := s.fetch.SelectMailbox(m.Name, readOnly)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", m.Name, err)
	}
	s.current = r
	s.currentOpen = true
	s.currentReadOnly = granted
	s.logger.WithFields(logrus.Fields{
		"mailbox":   m.Name,
		"read_only": granted,
	}).Info("Opened mailbox")
	return nil
}

// CloseMailbox clears the open mailbox and its headers; it reports whether
// a mailbox was actually open so callers can diagnose "nothing to close"
func (s *State) CloseMailbox() bool {
	wasOpen := s.currentOpen
	s.current = Ref{}
	s.currentOpen = false
	s.currentReadOnly = false
	s.Clear(Headers)
	return wasOpen
}

// AddFolder appends a just-created mailbox to the cached listing so it shows
// up without a reload. No-op returning false when no listing is loaded.
func (s *State) AddFolder(name, delimiter string) bool {
	nr, ok := s.folders.Append(name, delimiter)
	if !ok {
		return false
	}
	nr.Reset()
	s.folders = nr
	return true
}

// RemoveFolder drops a just-deleted mailbox from the cached listing.
// No-op returning false when the target is not in the listing.
func (s *State) RemoveFolder(target Ref) bool {
	nr, ok := s.folders.Delete(target)
	if !ok {
		return false
	}
	s.folders = nr
	return true
}

// WarmStart installs a persisted folder listing as the valid Folders
// category when caching is on and the stored listing is younger than the
// lifetime. Returns whether anything was installed.
func (s *State) WarmStart() bool {
	if s.persist == nil || !s.caching {
		return false
	}
	boxes, syncedAt, err := s.persist.LoadFolders(s.qualifier, s.filter)
	if err != nil || len(boxes) == 0 {
		return false
	}
	if s.lifetime > 0 && s.now().Sub(syncedAt) > s.lifetime {
		return false
	}
	s.folders = NewRef(NewSnapshot(boxes))
	s.detailed = false
	s.valid |= Folders
	s.loadedAt[Folders] = syncedAt
	s.logger.WithField("count", len(boxes)).Info("Warm-started folder listing from store")
	return true
}

package types

// NamespaceKind identifies which partition of the mailbox hierarchy a name
// belongs to.
type NamespaceKind int

const (
	NamespacePersonal NamespaceKind = iota
	NamespaceOthers
	NamespaceShared
	NamespaceSearch
)

// String returns a human-readable namespace name
func (k NamespaceKind) String() string {
	switch k {
	case NamespacePersonal:
		return "personal"
	case NamespaceOthers:
		return "other users"
	case NamespaceShared:
		return "shared"
	case NamespaceSearch:
		return "search"
	}
	return "unknown"
}

// NamespaceDesc describes one namespace root as reported by the server
type NamespaceDesc struct {
	Prefix    string
	Delimiter string
}

// Namespaces holds the server's NAMESPACE response
type Namespaces struct {
	Personal []NamespaceDesc
	Others   []NamespaceDesc
	Shared   []NamespaceDesc

	// SearchPrefix is an optional, locally configured prefix for virtual
	// search folders; servers do not advertise it.
	SearchPrefix string
}

// Mailbox represents one server mailbox as seen in a listing
type Mailbox struct {
	Name       string
	Delimiter  string
	Attributes []string

	// Message counts, meaningful only when the listing was loaded with
	// detail counts.
	Messages uint32
	Recent   uint32
	Unseen   uint32

	// Subscribed is meaningful only when the listing included
	// subscription info.
	Subscribed bool

	// Extra holds lazily fetched per-mailbox data; nil until first access.
	Extra *Extra
}

// HasAttribute reports whether the server listed the given attribute
// (e.g. \Noselect) for this mailbox
func (m *Mailbox) HasAttribute(attr string) bool {
	for _, a := range m.Attributes {
		if a == attr {
			return true
		}
	}
	return false
}

// Selectable reports whether the mailbox can be opened
func (m *Mailbox) Selectable() bool {
	return !m.HasAttribute("\\Noselect")
}

// Extra holds expensive per-mailbox attributes that are fetched at most once
// per listing snapshot
type Extra struct {
	Rights    string
	HasRights bool

	QuotaRoot    string
	StorageUsed  uint32
	StorageLimit uint32
	MessageUsed  uint32
	MessageLimit uint32
	HasQuota     bool
}

// Quota holds one quota root lookup result
type Quota struct {
	Root         string
	StorageUsed  uint32
	StorageLimit uint32
	MessageUsed  uint32
	MessageLimit uint32
}

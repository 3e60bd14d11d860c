package state

import (
	"time"

	"github.com/brandon/mboxadmin/pkg/types"
)

// DetailLevel selects how much information a folder listing fetch returns
type DetailLevel int

const (
	// DetailList is a plain listing: names, delimiters and attributes.
	DetailList DetailLevel = iota

	// DetailSubscribed additionally marks subscription state.
	DetailSubscribed

	// DetailCounts additionally fills message/recent/unseen counts.
	DetailCounts
)

// Fetcher is the protocol collaborator the cache pulls server facts from.
// Every call is a single blocking round trip; implementations do not retry.
type Fetcher interface {
	FetchFolders(qualifier, filter string, detail DetailLevel) ([]*types.Mailbox, error)
	FetchUsers(kind types.NamespaceKind) ([]*types.Mailbox, error)
	FetchHeaders(mailbox string) ([]*types.Header, error)
	FetchQuota(mailbox string) (types.Quota, error)
	FetchRights(mailbox string) (string, error)

	// SelectMailbox opens a mailbox and returns the read-only mode the
	// server actually granted, which may differ from the requested one.
	SelectMailbox(name string, readOnly bool) (bool, error)

	CreateFolder(name string) error
	DeleteFolder(name string) error
	RenameFolder(oldName, newName string) error

	Namespaces() (types.Namespaces, error)
}

// Persister is an optional sink for successful folder listings, used to warm
// a future session's cache. Implementations must keep snapshot order.
type Persister interface {
	SaveFolders(qualifier, filter string, boxes []*types.Mailbox) error
	LoadFolders(qualifier, filter string) ([]*types.Mailbox, time.Time, error)
}

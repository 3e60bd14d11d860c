package state

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/brandon/mboxadmin/pkg/types"
)

// Extras attaches expensive per-mailbox attributes (ACL rights, quota) to
// listing records. Each attribute is fetched at most once per record per
// snapshot generation; invalidation is snapshot-level only, the cached
// values die with the listing that owns the records.
type Extras struct {
	fetch  Fetcher
	logger *logrus.Logger
}

// NewExtras creates an extra-attribute store backed by the collaborator
func NewExtras(fetch Fetcher, logger *logrus.Logger) *Extras {
	return &Extras{fetch: fetch, logger: logger}
}

// Rights returns the ACL rights string for a mailbox, fetching it on first
// access and caching it on the record afterwards
func (e *Extras) Rights(m *types.Mailbox) (string, error) {
	if m.Extra != nil && m.Extra.HasRights {
		return m.Extra.Rights, nil
	}
	rights, err := e.fetch.FetchRights(m.Name)
	if err != nil {
		return "", fmt.Errorf("failed to fetch rights for %s: %w", m.Name, err)
	}
	if m.Extra == nil {
		m.Extra = &types.Extra{}
	}
	m.Extra.Rights = rights
	m.Extra.HasRights = true
	e.logger.WithFields(logrus.Fields{"mailbox": m.Name, "rights": rights}).Debug("Cached rights")
	return rights, nil
}

// Quota returns the quota root and usage for a mailbox, fetching it on
// first access and caching it on the record afterwards
func (e *Extras) Quota(m *types.Mailbox) (types.Quota, error) {
	if m.Extra != nil && m.Extra.HasQuota {
		return types.Quota{
			Root:         m.Extra.QuotaRoot,
			StorageUsed:  m.Extra.StorageUsed,
			StorageLimit: m.Extra.StorageLimit,
			MessageUsed:  m.Extra.MessageUsed,
			MessageLimit: m.Extra.MessageLimit,
		}, nil
	}
	q, err := e.fetch.FetchQuota(m.Name)
	if err != nil {
		return types.Quota{}, fmt.Errorf("failed to fetch quota for %s: %w", m.Name, err)
	}
	if m.Extra == nil {
		m.Extra = &types.Extra{}
	}
	m.Extra.QuotaRoot = q.Root
	m.Extra.StorageUsed = q.StorageUsed
	m.Extra.StorageLimit = q.StorageLimit
	m.Extra.MessageUsed = q.MessageUsed
	m.Extra.MessageLimit = q.MessageLimit
	m.Extra.HasQuota = true
	return q, nil
}

// loadAll fills the requested attributes for every selectable record in the
// snapshot, issuing at most one collaborator call per record per attribute.
func (e *Extras) loadAll(snap *Snapshot, rights, quota bool) error {
	for i := 0; i < snap.Len(); i++ {
		m := snap.At(i)
		if !m.Selectable() {
			continue
		}
		if rights {
			if _, err := e.Rights(m); err != nil {
				return err
			}
		}
		if quota {
			if _, err := e.Quota(m); err != nil {
				return err
			}
		}
	}
	return nil
}

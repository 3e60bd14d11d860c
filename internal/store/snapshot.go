package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brandon/mboxadmin/pkg/types"
)

// AccountStore is the per-account persister handed to the cache state
type AccountStore struct {
	store     *Store
	accountID int64
}

// SaveFolders replaces the persisted listing for (qualifier, filter) with
// the given snapshot, stamped with the current time
func (a *AccountStore) SaveFolders(qualifier, filter string, boxes []*types.Mailbox) error {
	tx, err := a.store.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	syncedAt := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO listings (account_id, qualifier, filter, synced_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id, qualifier, filter) DO UPDATE SET
			synced_at = excluded.synced_at
	`
	if _, err := tx.Exec(query, a.accountID, qualifier, filter, syncedAt); err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}

	var listingID int64
	err = tx.QueryRow(
		"SELECT id FROM listings WHERE account_id = ? AND qualifier = ? AND filter = ?",
		a.accountID, qualifier, filter,
	).Scan(&listingID)
	if err != nil {
		return fmt.Errorf("failed to get listing ID: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM mailboxes WHERE listing_id = ?", listingID); err != nil {
		return fmt.Errorf("failed to clear old listing: %w", err)
	}

	for i, box := range boxes {
		attrsJSON, err := json.Marshal(box.Attributes)
		if err != nil {
			return fmt.Errorf("failed to marshal attributes: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO mailboxes (listing_id, position, name, delimiter, attributes, messages, recent, unseen, subscribed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			listingID, i, box.Name, box.Delimiter, string(attrsJSON),
			box.Messages, box.Recent, box.Unseen, box.Subscribed,
		)
		if err != nil {
			return fmt.Errorf("failed to insert mailbox: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit listing: %w", err)
	}
	return nil
}

// LoadFolders returns the persisted listing for (qualifier, filter) along
// with when it was synced; sql.ErrNoRows surfaces when none exists
func (a *AccountStore) LoadFolders(qualifier, filter string) ([]*types.Mailbox, time.Time, error) {
	var listingID int64
	var syncedAtStr string
	err := a.store.db.QueryRow(
		"SELECT id, synced_at FROM listings WHERE account_id = ? AND qualifier = ? AND filter = ?",
		a.accountID, qualifier, filter,
	).Scan(&listingID, &syncedAtStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, err
		}
		return nil, time.Time{}, fmt.Errorf("failed to query listing: %w", err)
	}

	syncedAt, err := time.Parse(time.RFC3339, syncedAtStr)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse synced_at: %w", err)
	}

	rows, err := a.store.db.Query(`
		SELECT name, delimiter, attributes, messages, recent, unseen, subscribed
		FROM mailboxes WHERE listing_id = ? ORDER BY position`,
		listingID,
	)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query mailboxes: %w", err)
	}
	defer rows.Close()

	var boxes []*types.Mailbox
	for rows.Next() {
		box := &types.Mailbox{}
		var attrsJSON string
		err := rows.Scan(
			&box.Name, &box.Delimiter, &attrsJSON,
			&box.Messages, &box.Recent, &box.Unseen, &box.Subscribed,
		)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan mailbox: %w", err)
		}
		if err := json.Unmarshal([]byte(attrsJSON), &box.Attributes); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
		boxes = append(boxes, box)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read mailboxes: %w", err)
	}

	return boxes, syncedAt, nil
}

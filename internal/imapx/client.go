package imapx

import (
	"crypto/tls"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	quota "github.com/emersion/go-imap-quota"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mboxadmin/internal/config"
	"github.com/brandon/mboxadmin/internal/state"
	"github.com/brandon/mboxadmin/pkg/types"
)

// Client implements the cache's protocol collaborator on top of a go-imap
// connection. Every method is one synchronous round trip.
type Client struct {
	config    *config.AccountConfig
	client    *client.Client
	logger    *logrus.Logger
	connected bool
}

// NewClient creates a new IMAP client (does not connect immediately)
func NewClient(cfg *config.AccountConfig, logger *logrus.Logger) *Client {
	return &Client{
		config: cfg,
		logger: logger,
	}
}

// Connect establishes the connection and logs in
func (c *Client) Connect() error {
	if c.connected && c.client != nil {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	cl, err := client.DialTLS(addr, &tls.Config{
		ServerName: c.config.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	c.client = cl

	if err := c.client.Login(c.config.Username, c.config.Password); err != nil {
		c.logger.WithError(err).Error("Failed to login to IMAP server")
		c.client.Logout() //nolint:errcheck
		c.client = nil
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	c.connected = true
	c.logger.WithField("account", c.config.Name).Info("Connected to IMAP server")
	return nil
}

// Close logs out and closes the connection
func (c *Client) Close() error {
	if c.client != nil {
		if err := c.client.Logout(); err != nil {
			return err
		}
		c.client = nil
		c.connected = false
	}
	return nil
}

// FetchFolders lists mailboxes under the qualifier, matching the filter.
// DetailSubscribed additionally marks subscribed mailboxes; DetailCounts
// additionally runs STATUS on every selectable mailbox.
func (c *Client) FetchFolders(qualifier, filter string, detail state.DetailLevel) ([]*types.Mailbox, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}
	if filter == "" {
		filter = "*"
	}

	infos := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.client.List(qualifier, filter, infos)
	}()

	var boxes []*types.Mailbox
	for m := range infos {
		boxes = append(boxes, &types.Mailbox{
			Name:       m.Name,
			Delimiter:  m.Delimiter,
			Attributes: m.Attributes,
		})
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	if detail >= state.DetailSubscribed {
		if err := c.markSubscribed(qualifier, filter, boxes); err != nil {
			return nil, err
		}
	}
	if detail >= state.DetailCounts {
		for _, box := range boxes {
			if !box.Selectable() {
				continue
			}
			st, err := c.client.Status(box.Name, []imap.StatusItem{
				imap.StatusMessages, imap.StatusRecent, imap.StatusUnseen,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to get status of %s: %w", box.Name, err)
			}
			box.Messages = st.Messages
			box.Recent = st.Recent
			box.Unseen = st.Unseen
		}
	}

	return boxes, nil
}

// markSubscribed runs LSUB and flags the listed mailboxes as subscribed
func (c *Client) markSubscribed(qualifier, filter string, boxes []*types.Mailbox) error {
	infos := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.client.Lsub(qualifier, filter, infos)
	}()

	subscribed := make(map[string]bool)
	for m := range infos {
		subscribed[m.Name] = true
	}
	if err := <-done; err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	for _, box := range boxes {
		box.Subscribed = subscribed[box.Name]
	}
	return nil
}

// FetchUsers lists the top-level entries of the shared or other-users
// namespace
func (c *Client) FetchUsers(kind types.NamespaceKind) ([]*types.Mailbox, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	ns, err := c.Namespaces()
	if err != nil {
		return nil, err
	}
	var descs []types.NamespaceDesc
	switch kind {
	case types.NamespaceShared:
		descs = ns.Shared
	case types.NamespaceOthers:
		descs = ns.Others
	default:
		return nil, fmt.Errorf("no user listing for %s namespace", kind)
	}

	var boxes []*types.Mailbox
	for _, d := range descs {
		infos := make(chan *imap.MailboxInfo, 10)
		done := make(chan error, 1)
		go func() {
			done <- c.client.List(d.Prefix, "%", infos)
		}()
		for m := range infos {
			boxes = append(boxes, &types.Mailbox{
				Name:       m.Name,
				Delimiter:  m.Delimiter,
				Attributes: m.Attributes,
			})
		}
		if err := <-done; err != nil {
			return nil, fmt.Errorf("failed to list %s namespace: %w", kind, err)
		}
	}
	return boxes, nil
}

// FetchHeaders fetches UID, flags, size and the raw header section of every
// message in the mailbox. The literal is kept unparsed for lazy use.
func (c *Client) FetchHeaders(mailbox string) ([]*types.Header, error) {
	if err := c.Connect(); err != nil {
		return nil, err
	}

	mbox := c.client.Mailbox()
	if mbox == nil || mbox.Name != mailbox {
		var err error
		mbox, err = c.client.Select(mailbox, true)
		if err != nil {
			return nil, fmt.Errorf("failed to select %s: %w", mailbox, err)
		}
	}
	if mbox.Messages == 0 {
		return []*types.Header{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(1, mbox.Messages)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{
		imap.FetchUid, imap.FetchFlags, imap.FetchRFC822Size, section.FetchItem(),
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.client.Fetch(seqSet, items, messages)
	}()

	var headers []*types.Header
	for msg := range messages {
		h := &types.Header{
			Index: msg.SeqNum,
			UID:   msg.Uid,
			Size:  msg.Size,
			Flags: msg.Flags,
		}
		if literal := msg.GetBody(section); literal != nil {
			h.Literal = readLiteral(literal)
		}
		headers = append(headers, h)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch headers: %w", err)
	}

	return headers, nil
}

// FetchQuota looks up the quota root covering the mailbox
func (c *Client) FetchQuota(mailbox string) (types.Quota, error) {
	if err := c.Connect(); err != nil {
		return types.Quota{}, err
	}

	qc := quota.NewClient(c.client)
	statuses, err := qc.GetQuotaRoot(mailbox)
	if err != nil {
		return types.Quota{}, fmt.Errorf("failed to get quota for %s: %w", mailbox, err)
	}
	if len(statuses) == 0 {
		return types.Quota{}, nil
	}

	// Resource usage/limit pairs per RFC 2087.
	st := statuses[0]
	q := types.Quota{Root: st.Name}
	if r, ok := st.Resources["STORAGE"]; ok {
		q.StorageUsed, q.StorageLimit = r[0], r[1]
	}
	if r, ok := st.Resources["MESSAGE"]; ok {
		q.MessageUsed, q.MessageLimit = r[0], r[1]
	}
	return q, nil
}

// SelectMailbox opens a mailbox and reports the read-only mode the server
// actually granted
func (c *Client) SelectMailbox(name string, readOnly bool) (bool, error) {
	if err := c.Connect(); err != nil {
		return false, err
	}
	mbox, err := c.client.Select(name, readOnly)
	if err != nil {
		return false, fmt.Errorf("failed to select %s: %w", name, err)
	}
	return mbox.ReadOnly, nil
}

// CreateFolder creates a mailbox
func (c *Client) CreateFolder(name string) error {
	if err := c.Connect(); err != nil {
		return err
	}
	if err := c.client.Create(name); err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	return nil
}

// DeleteFolder deletes a mailbox
func (c *Client) DeleteFolder(name string) error {
	if err := c.Connect(); err != nil {
		return err
	}
	if err := c.client.Delete(name); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// RenameFolder renames a mailbox
func (c *Client) RenameFolder(oldName, newName string) error {
	if err := c.Connect(); err != nil {
		return err
	}
	if err := c.client.Rename(oldName, newName); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", oldName, newName, err)
	}
	return nil
}

// readLiteral reads an IMAP literal into a byte slice
func readLiteral(literal imap.Literal) []byte {
	data := make([]byte, 0, 8192)
	buf := make([]byte, 1024)
	for {
		n, err := literal.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
		}
		if err != nil {
			if err != io.EOF {
				return data
			}
			break
		}
	}
	return data
}

package imapx

import (
	"errors"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/responses"
)

// MYRIGHTS support per RFC 4314. go-imap has no built-in ACL extension, so
// the command and its untagged response are implemented here directly.

type myRightsCommand struct {
	Mailbox string
}

func (cmd *myRightsCommand) Command() *imap.Command {
	return &imap.Command{
		Name:      "MYRIGHTS",
		Arguments: []interface{}{imap.FormatMailboxName(cmd.Mailbox)},
	}
}

type myRightsResponse struct {
	Mailbox string
	Rights  string
}

func (r *myRightsResponse) Handle(resp imap.Resp) error {
	name, fields, ok := imap.ParseNamedResp(resp)
	if !ok || name != "MYRIGHTS" {
		return responses.ErrUnhandled
	}
	if len(fields) < 2 {
		return errors.New("MYRIGHTS response: not enough fields")
	}
	mailbox, err := imap.ParseString(fields[0])
	if err != nil {
		return err
	}
	rights, err := imap.ParseString(fields[1])
	if err != nil {
		return err
	}
	r.Mailbox = mailbox
	r.Rights = rights
	return nil
}

// FetchRights returns the logged-in user's rights string on the mailbox
func (c *Client) FetchRights(mailbox string) (string, error) {
	if err := c.Connect(); err != nil {
		return "", err
	}

	res := &myRightsResponse{}
	status, err := c.client.Execute(&myRightsCommand{Mailbox: mailbox}, res)
	if err != nil {
		return "", fmt.Errorf("failed to get rights for %s: %w", mailbox, err)
	}
	if err := status.Err(); err != nil {
		return "", fmt.Errorf("failed to get rights for %s: %w", mailbox, err)
	}
	return res.Rights, nil
}

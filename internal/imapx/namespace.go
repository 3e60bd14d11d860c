package imapx

import (
	"errors"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/responses"

	"github.com/brandon/mboxadmin/pkg/types"
)

// NAMESPACE support per RFC 2342, implemented as a raw command like
// MYRIGHTS. Servers without the capability yield empty namespaces and the
// resolver falls back to its defaults.

type namespaceCommand struct{}

func (cmd *namespaceCommand) Command() *imap.Command {
	return &imap.Command{Name: "NAMESPACE"}
}

type namespaceResponse struct {
	Personal []types.NamespaceDesc
	Others   []types.NamespaceDesc
	Shared   []types.NamespaceDesc
}

func (r *namespaceResponse) Handle(resp imap.Resp) error {
	name, fields, ok := imap.ParseNamedResp(resp)
	if !ok || name != "NAMESPACE" {
		return responses.ErrUnhandled
	}
	if len(fields) < 3 {
		return errors.New("NAMESPACE response: not enough fields")
	}
	r.Personal = parseNamespaceSet(fields[0])
	r.Others = parseNamespaceSet(fields[1])
	r.Shared = parseNamespaceSet(fields[2])
	return nil
}

// parseNamespaceSet decodes one namespace list field; NIL yields nil
func parseNamespaceSet(field interface{}) []types.NamespaceDesc {
	list, ok := field.([]interface{})
	if !ok {
		return nil
	}
	var descs []types.NamespaceDesc
	for _, item := range list {
		pair, ok := item.([]interface{})
		if !ok || len(pair) < 2 {
			continue
		}
		prefix, err := imap.ParseString(pair[0])
		if err != nil {
			continue
		}
		delim, err := imap.ParseString(pair[1])
		if err != nil {
			continue
		}
		descs = append(descs, types.NamespaceDesc{Prefix: prefix, Delimiter: delim})
	}
	return descs
}

// Namespaces fetches the server's namespace layout. Servers without the
// NAMESPACE capability return an empty value, not an error.
func (c *Client) Namespaces() (types.Namespaces, error) {
	if err := c.Connect(); err != nil {
		return types.Namespaces{}, err
	}

	if ok, err := c.client.Support("NAMESPACE"); err != nil {
		return types.Namespaces{}, fmt.Errorf("failed to check capabilities: %w", err)
	} else if !ok {
		return types.Namespaces{}, nil
	}

	res := &namespaceResponse{}
	status, err := c.client.Execute(&namespaceCommand{}, res)
	if err != nil {
		return types.Namespaces{}, fmt.Errorf("failed to get namespaces: %w", err)
	}
	if err := status.Err(); err != nil {
		return types.Namespaces{}, fmt.Errorf("failed to get namespaces: %w", err)
	}
	return types.Namespaces{
		Personal: res.Personal,
		Others:   res.Others,
		Shared:   res.Shared,
	}, nil
}

package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/brandon/mboxadmin/pkg/types"
)

// ResolveItems turns user-supplied item arguments, starting at offset, into
// a concrete list of message identifiers against the loaded header snapshot.
//
// A single "*" selects every loaded message by UID regardless of mode.
// With useID or useUID set, each argument is taken verbatim as an unsigned
// id/uid with no bounds checking; the server rejects invalid ones. Otherwise
// arguments are 1-based positions or inclusive a:b ranges, converted to the
// UIDs of the corresponding messages.
func ResolveItems(args []string, offset int, useID, useUID bool, headers []*types.Header) ([]uint32, error) {
	if useID && useUID {
		return nil, ErrSelectionMode
	}
	if headers == nil {
		return nil, fmt.Errorf("message headers: %w", ErrNotLoaded)
	}
	if offset > len(args) {
		offset = len(args)
	}
	items := args[offset:]
	if len(items) == 0 {
		return nil, fmt.Errorf("no messages specified: %w", ErrBadNumber)
	}

	if len(items) == 1 && items[0] == "*" {
		uids := make([]uint32, len(headers))
		for i, h := range headers {
			uids[i] = h.UID
		}
		return uids, nil
	}

	if useID || useUID {
		uids := make([]uint32, 0, len(items))
		for _, arg := range items {
			n, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", arg, ErrBadNumber)
			}
			uids = append(uids, uint32(n))
		}
		return uids, nil
	}

	var uids []uint32
	for _, arg := range items {
		if strings.Contains(arg, ":") {
			lo, hi, err := parseRange(arg, len(headers))
			if err != nil {
				return nil, err
			}
			for i := lo; i <= hi; i++ {
				uids = append(uids, headers[i-1].UID)
			}
			continue
		}
		if arg == "*" {
			return nil, fmt.Errorf("%q: %w", arg, ErrBadWildcard)
		}
		n, err := parseIndex(arg, len(headers))
		if err != nil {
			return nil, err
		}
		uids = append(uids, headers[n-1].UID)
	}
	return uids, nil
}

// parseIndex parses a 1-based message position and bounds-checks it
func parseIndex(arg string, count int) (int, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", arg, ErrBadNumber)
	}
	if n < 1 || int(n) > count {
		return 0, fmt.Errorf("message %d out of range 1:%d: %w", n, count, ErrBadRange)
	}
	return int(n), nil
}

// parseRange parses an inclusive a:b range of 1-based positions
func parseRange(arg string, count int) (lo, hi int, err error) {
	parts := strings.SplitN(arg, ":", 2)
	if parts[0] == "*" || parts[1] == "*" {
		return 0, 0, fmt.Errorf("%q: %w", arg, ErrBadWildcard)
	}
	lo, err = parseIndex(parts[0], count)
	if err != nil {
		return 0, 0, err
	}
	hi, err = parseIndex(parts[1], count)
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("inverted range %q: %w", arg, ErrBadRange)
	}
	return lo, hi, nil
}

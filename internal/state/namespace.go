package state

import (
	"fmt"
	"strings"

	"github.com/brandon/mboxadmin/pkg/types"
)

// Resolver maps between account-relative mailbox fragments and fully
// qualified server names, and classifies names into namespace partitions.
type Resolver struct {
	ns types.Namespaces
}

// NewResolver builds a resolver from the server's namespace listing.
// An empty Namespaces value yields a resolver that treats everything as
// the personal namespace with a '.' delimiter.
func NewResolver(ns types.Namespaces) *Resolver {
	return &Resolver{ns: ns}
}

// Classify assigns a fully-qualified name to a namespace partition.
// The longest matching advertised prefix wins; names matching nothing
// belong to the personal namespace.
func (r *Resolver) Classify(name string) types.NamespaceKind {
	kind := types.NamespacePersonal
	best := -1
	match := func(descs []types.NamespaceDesc, k types.NamespaceKind) {
		for _, d := range descs {
			if d.Prefix == "" {
				continue
			}
			if strings.HasPrefix(name, d.Prefix) && len(d.Prefix) > best {
				best = len(d.Prefix)
				kind = k
			}
		}
	}
	match(r.ns.Others, types.NamespaceOthers)
	match(r.ns.Shared, types.NamespaceShared)
	if p := r.ns.SearchPrefix; p != "" && strings.HasPrefix(name, p) && len(p) > best {
		kind = types.NamespaceSearch
	}
	return kind
}

// SamePartition reports whether two names live in the same namespace.
// Tree recursion never crosses partition boundaries.
func (r *Resolver) SamePartition(a, b string) bool {
	return r.Classify(a) == r.Classify(b)
}

// Delimiter returns the hierarchy delimiter for a partition, defaulting
// to '.' when the server advertised none
func (r *Resolver) Delimiter(kind types.NamespaceKind) string {
	var descs []types.NamespaceDesc
	switch kind {
	case types.NamespaceOthers:
		descs = r.ns.Others
	case types.NamespaceShared:
		descs = r.ns.Shared
	default:
		descs = r.ns.Personal
	}
	for _, d := range descs {
		if d.Delimiter != "" {
			return d.Delimiter
		}
	}
	return "."
}

// Root returns the prefix of a partition without its trailing delimiter.
// The personal partition with an empty prefix resolves to INBOX.
func (r *Resolver) Root(kind types.NamespaceKind) string {
	var descs []types.NamespaceDesc
	switch kind {
	case types.NamespaceOthers:
		descs = r.ns.Others
	case types.NamespaceShared:
		descs = r.ns.Shared
	default:
		descs = r.ns.Personal
	}
	for _, d := range descs {
		if d.Prefix != "" {
			return strings.TrimSuffix(d.Prefix, d.Delimiter)
		}
	}
	if kind == types.NamespacePersonal {
		return "INBOX"
	}
	return ""
}

// Qualify resolves a raw, possibly account-relative fragment to a fully
// qualified server name against the loaded folder snapshot.
//
// "." and "" resolve to the current mailbox when one is open, else to the
// default namespace root. A fragment that already contains the hierarchy
// delimiter is used verbatim; verbatim is returned true so the caller can
// warn that the name bypassed existence validation. Anything else is
// matched against the snapshot by suffix-after-delimiter comparison, and
// if nothing matches and the fragment is a plausible new name it is
// prefixed with the active qualifier.
func (r *Resolver) Qualify(fragment, qualifier string, folders Ref, current string) (name string, verbatim bool, err error) {
	delim := r.Delimiter(types.NamespacePersonal)

	if fragment == "" || fragment == "." {
		if current != "" {
			return current, false, nil
		}
		return r.Root(types.NamespacePersonal), false, nil
	}

	if strings.Contains(fragment, delim) {
		return fragment, true, nil
	}

	var found []string
	if !folders.IsNone() {
		for i := 0; i < folders.Len(); i++ {
			n := folders.snap.At(i).Name
			if n == fragment || strings.HasSuffix(n, delim+fragment) {
				found = append(found, n)
			}
		}
	}
	switch len(found) {
	case 1:
		return found[0], false, nil
	case 0:
		if !plausibleName(fragment) {
			return "", false, fmt.Errorf("mailbox %q: %w", fragment, ErrNotFound)
		}
		if qualifier != "" {
			return qualifier + delim + fragment, false, nil
		}
		return fragment, false, nil
	default:
		return "", false, fmt.Errorf("mailbox %q matches %d folders: %w", fragment, len(found), ErrAmbiguous)
	}
}

// plausibleName reports whether a fragment could name a new mailbox:
// printable ASCII without wildcards or quoting hazards.
func plausibleName(s string) bool {
	for _, c := range s {
		if c <= ' ' || c > '~' {
			return false
		}
		switch c {
		case '*', '%', '"', '\\':
			return false
		}
	}
	return s != ""
}

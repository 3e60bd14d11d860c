package state

import (
	"strings"

	"github.com/brandon/mboxadmin/pkg/types"
)

// posReset marks a cursor that has been rewound to before the first entry.
const posReset = -1

// Snapshot is an immutable ordered mailbox listing produced by one fetch.
// Append and Delete copy-construct a new backing slice, so cursors taken
// before a mutation keep observing the original sequence.
type Snapshot struct {
	boxes []*types.Mailbox
}

// NewSnapshot wraps a fetched listing in a snapshot
func NewSnapshot(boxes []*types.Mailbox) *Snapshot {
	return &Snapshot{boxes: boxes}
}

// Len returns the number of records in the snapshot
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.boxes)
}

// At returns the record at position i
func (s *Snapshot) At(i int) *types.Mailbox {
	return s.boxes[i]
}

func (s *Snapshot) withAppended(m *types.Mailbox) *Snapshot {
	boxes := make([]*types.Mailbox, len(s.boxes), len(s.boxes)+1)
	copy(boxes, s.boxes)
	return &Snapshot{boxes: append(boxes, m)}
}

func (s *Snapshot) withRemoved(i int) *Snapshot {
	boxes := make([]*types.Mailbox, 0, len(s.boxes)-1)
	boxes = append(boxes, s.boxes[:i]...)
	boxes = append(boxes, s.boxes[i+1:]...)
	return &Snapshot{boxes: boxes}
}

// Ref is a cursor into one snapshot: a (snapshot, position) pair. The zero
// Ref references nothing; a freshly created or Reset ref sits before the
// first entry so the same value serves as both a handle and an iterator.
type Ref struct {
	snap *Snapshot
	pos  int
}

// NewRef returns a rewound cursor over the given snapshot
func NewRef(s *Snapshot) Ref {
	return Ref{snap: s, pos: posReset}
}

// RefAt returns a cursor positioned at entry i of the snapshot
func RefAt(s *Snapshot, i int) Ref {
	return Ref{snap: s, pos: i}
}

// IsNone reports whether the ref references no snapshot at all
func (r Ref) IsNone() bool {
	return r.snap == nil
}

// Valid reports whether the ref points at an existing record
func (r Ref) Valid() bool {
	return r.snap != nil && r.pos >= 0 && r.pos < r.snap.Len()
}

// Len returns the length of the referenced snapshot
func (r Ref) Len() int {
	return r.snap.Len()
}

// Index returns the current position
func (r Ref) Index() int {
	return r.pos
}

// Mailbox returns the record under the cursor; callers must check Valid first
func (r Ref) Mailbox() *types.Mailbox {
	return r.snap.At(r.pos)
}

// At returns the record at position i of the referenced snapshot
func (r Ref) At(i int) *types.Mailbox {
	return r.snap.At(i)
}

// Reset rewinds the cursor to before the first entry
func (r *Ref) Reset() {
	r.pos = posReset
}

// Next advances the cursor and reports whether it landed on a record.
// Once exhausted it stays past the end and keeps returning false.
func (r *Ref) Next() bool {
	if r.snap == nil {
		return false
	}
	if r.pos < r.snap.Len() {
		r.pos++
	}
	return r.pos < r.snap.Len()
}

// Search returns a ref positioned at the record whose fully-qualified name
// matches exactly, or false if no record matches
func (r Ref) Search(name string) (Ref, bool) {
	for i := 0; i < r.snap.Len(); i++ {
		if r.snap.At(i).Name == name {
			return Ref{snap: r.snap, pos: i}, true
		}
	}
	return Ref{}, false
}

// Recurse enumerates the record under the cursor plus every record further
// on in the snapshot whose name extends it by the hierarchy delimiter and
// that lives in the same namespace partition. The first call with *pos < 0
// yields the subtree root itself; each later call continues scanning forward
// from the last returned position. Ordering is snapshot order.
func (r Ref) Recurse(pos *int, res *Resolver) bool {
	if !r.Valid() {
		return false
	}
	root := r.Mailbox()
	if *pos < 0 {
		*pos = r.pos
		return true
	}
	if root.Delimiter == "" {
		return false
	}
	prefix := root.Name + root.Delimiter
	for i := *pos + 1; i < r.snap.Len(); i++ {
		m := r.snap.At(i)
		if !strings.HasPrefix(m.Name, prefix) {
			continue
		}
		if res != nil && !res.SamePartition(m.Name, root.Name) {
			continue
		}
		*pos = i
		return true
	}
	*pos = r.snap.Len()
	return false
}

// Append copy-extends the snapshot with a new, detail-less record and
// returns a ref positioned at it. Used after a successful server-side
// create so the cached listing stays in sync without a reload.
func (r Ref) Append(name, delimiter string) (Ref, bool) {
	if r.IsNone() {
		return Ref{}, false
	}
	ns := r.snap.withAppended(&types.Mailbox{Name: name, Delimiter: delimiter})
	return Ref{snap: ns, pos: ns.Len() - 1}, true
}

// Delete copy-shrinks the snapshot, removing the record the target points
// at, or the record with the target's name when the two refs belong to
// different snapshots. Returns false if nothing matched.
func (r Ref) Delete(target Ref) (Ref, bool) {
	if r.IsNone() || !target.Valid() {
		return Ref{}, false
	}
	i := -1
	if target.snap == r.snap {
		i = target.pos
	} else {
		name := target.Mailbox().Name
		for j := 0; j < r.snap.Len(); j++ {
			if r.snap.At(j).Name == name {
				i = j
				break
			}
		}
	}
	if i < 0 {
		return Ref{}, false
	}
	return Ref{snap: r.snap.withRemoved(i), pos: posReset}, true
}

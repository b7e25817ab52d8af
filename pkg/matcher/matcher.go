// Package matcher resolves a probe descriptor to an enrolled identity.
package matcher

import (
	"github.com/MrCodeEU/faceattend/pkg/gallery"
	"github.com/MrCodeEU/faceattend/pkg/recognition"
)

// Unknown is the label for faces that match no entry.
const Unknown = "Unknown"

// Comparator decides whether two descriptors belong to the same person.
type Comparator interface {
	IsMatch(a, b recognition.Descriptor) bool
}

// Matcher scans a gallery snapshot linearly.
type Matcher struct {
	entries []gallery.Entry
	cmp     Comparator
}

// New creates a matcher over g. A nil gallery behaves as an empty one.
func New(g *gallery.Gallery, cmp Comparator) *Matcher {
	m := &Matcher{cmp: cmp}
	if g != nil {
		m.entries = g.Entries()
	}
	return m
}

// Match returns the name of the first entry, in load order, that the
// comparator accepts. Entries are not ranked by distance, so when two
// identities both pass the threshold the one loaded first wins.
func (m *Matcher) Match(probe recognition.Descriptor) (string, bool) {
	for _, e := range m.entries {
		if m.cmp.IsMatch(probe, e.Descriptor) {
			return e.Name, true
		}
	}
	return Unknown, false
}

// Len returns the number of entries being searched.
func (m *Matcher) Len() int {
	return len(m.entries)
}

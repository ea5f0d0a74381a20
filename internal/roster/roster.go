// Package roster holds the contact snapshot captured at login.
package roster

import (
	"fmt"
	"sort"

	"github.com/meszmate/quickchat/internal/stanza"
)

// Contact is one roster entry.
type Contact struct {
	UserID       int
	Name         string
	Subscription string
}

// Snapshot is the set of known contacts at the moment authentication
// completed. It is immutable; a reconnect produces a fresh snapshot.
type Snapshot struct {
	contacts map[int]Contact
}

// NewSnapshot builds a snapshot from contacts.
func NewSnapshot(contacts []Contact) *Snapshot {
	s := &Snapshot{contacts: make(map[int]Contact, len(contacts))}
	for _, c := range contacts {
		s.contacts[c.UserID] = c
	}
	return s
}

// FromIQ decodes the roster query result delivered during login.
func FromIQ(st *stanza.Stanza) (*Snapshot, error) {
	query := st.ChildNS(stanza.NSRoster, "query")
	if query == nil {
		return nil, fmt.Errorf("response carries no roster query")
	}

	var contacts []Contact
	for _, item := range query.Children() {
		if item.XMLName.Local != "item" {
			continue
		}
		userID, _, err := stanza.Sender(item.Attr("jid"))
		if err != nil {
			// Entries outside the numeric account scheme are skipped.
			continue
		}
		contacts = append(contacts, Contact{
			UserID:       userID,
			Name:         item.Attr("name"),
			Subscription: item.Attr("subscription"),
		})
	}
	return NewSnapshot(contacts), nil
}

// Get returns the contact for a user id.
func (s *Snapshot) Get(userID int) (Contact, bool) {
	c, ok := s.contacts[userID]
	return c, ok
}

// All returns the contacts ordered by user id.
func (s *Snapshot) All() []Contact {
	contacts := make([]Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		contacts = append(contacts, c)
	}
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].UserID < contacts[j].UserID })
	return contacts
}

// Len returns the number of contacts.
func (s *Snapshot) Len() int { return len(s.contacts) }

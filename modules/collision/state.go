package collision

import (
	"sync"

	"github.com/aukilabs/bsptree/models"
)

// Contact is a character touching another entity during a frame.
type Contact struct {
	// The character id.
	A uint32 `json:"a"`

	// The touched entity id, within the id space of its kind.
	B uint32 `json:"b"`

	Kind models.EntityKind `json:"kind"`
}

// State represents the contacts found during the last collision pass.
type State struct {
	mutex    sync.RWMutex
	frame    uint64
	contacts []Contact
}

func (s *State) SetContacts(frame uint64, contacts []Contact) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.frame = frame
	s.contacts = append(s.contacts[:0], contacts...)
}

// Contacts returns the frame the contacts were found in and a copy of them.
func (s *State) Contacts() (uint64, []Contact) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	contacts := make([]Contact, len(s.contacts))
	copy(contacts, s.contacts)
	return s.frame, contacts
}

// Touching returns the contacts that involve the given character.
func (s *State) Touching(characterID uint32) []Contact {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var contacts []Contact
	for _, c := range s.contacts {
		if c.A == characterID || (c.Kind == models.EntityKindCharacter && c.B == characterID) {
			contacts = append(contacts, c)
		}
	}
	return contacts
}

func (s *State) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.frame = 0
	s.contacts = nil
}

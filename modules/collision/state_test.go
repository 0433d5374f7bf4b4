package collision

import (
	"testing"

	"github.com/aukilabs/bsptree/models"
	"github.com/stretchr/testify/require"
)

func TestStateContacts(t *testing.T) {
	var s State

	contacts := []Contact{
		{A: 1, B: 2, Kind: models.EntityKindCharacter},
		{A: 1, B: 7, Kind: models.EntityKindParticle},
	}
	s.SetContacts(42, contacts)

	frame, got := s.Contacts()
	require.Equal(t, uint64(42), frame)
	require.Equal(t, contacts, got)

	got[0].B = 21
	_, got = s.Contacts()
	require.Equal(t, uint32(2), got[0].B)
}

func TestStateTouching(t *testing.T) {
	var s State
	s.SetContacts(1, []Contact{
		{A: 1, B: 2, Kind: models.EntityKindCharacter},
		{A: 1, B: 3, Kind: models.EntityKindParticle},
		{A: 3, B: 2, Kind: models.EntityKindParticle},
	})

	t.Run("character as first element", func(t *testing.T) {
		require.Len(t, s.Touching(1), 2)
	})

	t.Run("character as second element", func(t *testing.T) {
		contacts := s.Touching(2)
		require.Len(t, contacts, 1)
		require.Equal(t, uint32(1), contacts[0].A)
	})

	t.Run("particle ids are not characters", func(t *testing.T) {
		require.Len(t, s.Touching(3), 1)
	})

	t.Run("unknown character", func(t *testing.T) {
		require.Empty(t, s.Touching(42))
	})
}

func TestStateReset(t *testing.T) {
	var s State
	s.SetContacts(1, []Contact{{A: 1, B: 2}})
	s.Reset()

	frame, contacts := s.Contacts()
	require.Zero(t, frame)
	require.Empty(t, contacts)
}

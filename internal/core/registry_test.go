package core

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func memberSet(sessions []*Session) map[*Session]bool {
	set := make(map[*Session]bool, len(sessions))
	for _, s := range sessions {
		set[s] = true
	}
	return set
}

func TestRegistryJoinIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	s := NewSession(0)

	require.NoError(t, reg.Join(s, "R1"))
	require.NoError(t, reg.Join(s, "R1"))

	require.Len(t, reg.Members("R1"), 1)
	require.Equal(t, []RoomInfo{{Key: "R1", Members: 1}}, reg.Rooms())
	require.Equal(t, StateJoined, s.State())
	require.Equal(t, "R1", s.Room())
}

func TestRegistryLeaveIsNoopWhenAbsent(t *testing.T) {
	reg := NewRegistry()
	a, b := NewSession(0), NewSession(0)

	require.NoError(t, reg.Join(a, "R1"))
	require.False(t, reg.Leave(b, "R1"))
	require.False(t, reg.Leave(b, "nowhere"))
	require.Len(t, reg.Members("R1"), 1)
}

func TestRegistryCollectsEmptyRooms(t *testing.T) {
	reg := NewRegistry()
	s := NewSession(0)

	require.NoError(t, reg.Join(s, "R1"))
	require.True(t, reg.Leave(s, "R1"))
	require.Zero(t, reg.RoomCount())
	require.Empty(t, reg.Members("R1"))
	require.Equal(t, StateConnected, s.State())

	// The key can be reused right away.
	require.NoError(t, reg.Join(s, "R1"))
	require.Len(t, reg.Members("R1"), 1)
}

func TestRegistryLeaveAll(t *testing.T) {
	reg := NewRegistry()
	s, other := NewSession(0), NewSession(0)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, reg.Join(s, key))
	}
	require.NoError(t, reg.Join(other, "b"))

	reg.LeaveAll(s)

	require.Empty(t, s.Rooms())
	require.Empty(t, reg.Members("a"))
	require.Equal(t, []*Session{other}, reg.Members("b"))
	require.Equal(t, 1, reg.RoomCount())
}

func TestRegistryRejectsClosedSession(t *testing.T) {
	reg := NewRegistry()
	s := NewSession(0)
	s.Close()

	require.ErrorIs(t, reg.Join(s, "R1"), ErrSessionClosed)
	require.Empty(t, reg.Members("R1"))
}

func TestRegistrySnapshotIsStable(t *testing.T) {
	reg := NewRegistry()
	a, b := NewSession(0), NewSession(0)
	require.NoError(t, reg.Join(a, "R1"))
	require.NoError(t, reg.Join(b, "R1"))

	snapshot := reg.Members("R1")
	reg.Leave(a, "R1")

	require.Len(t, snapshot, 2)
	require.Len(t, reg.Members("R1"), 1)
}

// Random join/leave traffic from many goroutines must leave the registry
// matching a model of who joined and has not left since.
func TestRegistryConcurrentMembershipMatchesModel(t *testing.T) {
	reg := NewRegistry()
	rooms := []string{"r0", "r1", "r2", "r3"}

	const workers = 16
	sessions := make([]*Session, workers)
	expected := make([]map[string]bool, workers)

	var wg sync.WaitGroup
	for i := range workers {
		sessions[i] = NewSession(0)
		expected[i] = make(map[string]bool)

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(int64(i)))
			for range 500 {
				key := rooms[rnd.Intn(len(rooms))]
				if rnd.Intn(2) == 0 {
					if err := reg.Join(sessions[i], key); err == nil {
						expected[i][key] = true
					}
				} else {
					reg.Leave(sessions[i], key)
					delete(expected[i], key)
				}
			}
		}(i)
	}
	wg.Wait()

	for _, key := range rooms {
		got := memberSet(reg.Members(key))
		for i, s := range sessions {
			require.Equal(t, expected[i][key], got[s], fmt.Sprintf("session %d room %s", i, key))
		}
	}
	for _, info := range reg.Rooms() {
		require.Positive(t, info.Members)
	}
}

func TestRegistryDisconnectDuringJoins(t *testing.T) {
	reg := NewRegistry()

	for range 200 {
		s := NewSession(0)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.Join(s, "hot")
		}()
		go func() {
			defer wg.Done()
			s.Close()
			reg.LeaveAll(s)
		}()
		wg.Wait()

		require.False(t, reg.IsMember(s, "hot"))
	}
	require.Zero(t, reg.RoomCount())
}

package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ernie/clickrace/internal/domain"
)

type fakeConn struct {
	id   string
	msgs []domain.Message
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(msgType string, data any) {
	f.msgs = append(f.msgs, domain.Message{Type: msgType, Data: data})
}

// ofType returns all recorded messages of the given type
func (f *fakeConn) ofType(msgType string) []domain.Message {
	var out []domain.Message
	for _, m := range f.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// last returns the most recent message of the given type
func (f *fakeConn) last(t *testing.T, msgType string) domain.Message {
	t.Helper()
	msgs := f.ofType(msgType)
	require.NotEmpty(t, msgs, "expected a %s message", msgType)
	return msgs[len(msgs)-1]
}

func testRoom(t *testing.T, names ...string) (*Room, []*Player) {
	t.Helper()
	room := newRoom("TEST42", time.Now())
	players := make([]*Player, 0, len(names))
	for _, name := range names {
		p := room.AddPlayer(newFakeConn(name), name, "cla", 0, time.Now())
		players = append(players, p)
	}
	return room, players
}

func TestAddPlayer_FirstIsHost(t *testing.T) {
	room, players := testRoom(t, "a", "b", "c")

	assert.Equal(t, players[0].ID, room.HostID)
	assert.Equal(t, 3, room.PlayerCount())
	assert.Equal(t, PhaseLobby, room.Phase)
}

func TestAddPlayer_ColorsPreferUnused(t *testing.T) {
	room, players := testRoom(t, "a", "b", "c")

	assert.Equal(t, domain.Palette[0], players[0].Color)
	assert.Equal(t, domain.Palette[1], players[1].Color)
	assert.Equal(t, domain.Palette[2], players[2].Color)

	infos := room.PlayerInfos()
	assert.Equal(t, domain.Palette[1], infos[1].CarColor)
}

func TestClick_RateLimitDropsFastInputs(t *testing.T) {
	room := newRoom("TEST42", time.Now())
	start := time.Now()
	p := room.AddPlayer(newFakeConn("a"), "a", "cla", 50*time.Millisecond, start)
	room.StartRace(start, 0)

	accepted, _ := room.Click(p, start)
	assert.True(t, accepted)

	// 10ms later, under the 50ms threshold: dropped, not queued
	accepted, _ = room.Click(p, start.Add(10*time.Millisecond))
	assert.False(t, accepted)
	assert.Equal(t, 1, p.Progress)

	accepted, _ = room.Click(p, start.Add(60*time.Millisecond))
	assert.True(t, accepted)
	assert.Equal(t, 2, p.Progress)
}

func TestClick_ProgressMatchesAcceptedInputs(t *testing.T) {
	room := newRoom("TEST42", time.Now())
	start := time.Now()
	p := room.AddPlayer(newFakeConn("a"), "a", "cla", 50*time.Millisecond, start)
	room.StartRace(start, 0)

	now := start
	accepted := 0
	for i := 0; i < 150; i++ {
		now = now.Add(50 * time.Millisecond)
		ok, _ := room.Click(p, now)
		if ok {
			accepted++
		}
		assert.Equal(t, min(accepted, FullProgress), p.Progress)
	}
	assert.Equal(t, FullProgress, p.Progress)
	require.NotNil(t, p.FinishedAt)
	assert.Equal(t, 1, p.Rank)
}

func TestClick_RejectedOutsideRacingWindow(t *testing.T) {
	room, players := testRoom(t, "a")
	p := players[0]

	// Lobby phase
	accepted, _ := room.Click(p, time.Now())
	assert.False(t, accepted)

	// Racing but before the scheduled start instant
	now := time.Now()
	room.StartRace(now, 3500*time.Millisecond)
	accepted, _ = room.Click(p, now.Add(time.Second))
	assert.False(t, accepted)
	assert.Equal(t, 0, p.Progress)

	// After the start instant
	accepted, _ = room.Click(p, now.Add(4*time.Second))
	assert.True(t, accepted)
}

func TestClick_RejectedForFinishedAndDisconnected(t *testing.T) {
	room, players := testRoom(t, "a", "b")
	now := time.Now()
	room.StartRace(now, 0)

	clickOut(room, players[0], now)
	accepted, _ := room.Click(players[0], now.Add(time.Hour))
	assert.False(t, accepted, "finished player must not accumulate progress")

	players[1].Disconnected = true
	accepted, _ = room.Click(players[1], now.Add(time.Hour))
	assert.False(t, accepted)
}

// clickOut drives p to full progress
func clickOut(room *Room, p *Player, now time.Time) {
	for i := 0; i < FullProgress; i++ {
		room.Click(p, now.Add(time.Duration(i)*time.Millisecond))
	}
}

func TestFinishRace_RanksAreABijection(t *testing.T) {
	room, players := testRoom(t, "a", "b", "c", "d")
	now := time.Now()
	room.StartRace(now, 0)

	// Two finishers in order, two stragglers with different progress
	clickOut(room, players[0], now)
	clickOut(room, players[1], now.Add(time.Second))
	for i := 0; i < 40; i++ {
		room.Click(players[2], now.Add(time.Duration(i)*time.Millisecond))
	}
	for i := 0; i < 70; i++ {
		room.Click(players[3], now.Add(time.Duration(i)*time.Millisecond))
	}

	results := room.FinishRace()
	require.Len(t, results, 4)
	assert.Equal(t, PhaseFinished, room.Phase)

	seen := make(map[int]bool)
	for i, res := range results {
		assert.Equal(t, i+1, res.Rank, "results must be ordered by rank")
		assert.False(t, seen[res.Rank])
		seen[res.Rank] = true
	}

	// Finished strictly ahead of DNF, DNF ordered by descending progress
	assert.Equal(t, players[0].ID, results[0].SocketID)
	assert.Equal(t, players[1].ID, results[1].SocketID)
	assert.Equal(t, players[3].ID, results[2].SocketID)
	assert.Equal(t, players[2].ID, results[3].SocketID)

	assert.False(t, results[0].DNF)
	require.NotNil(t, results[0].FinishTime)
	assert.True(t, results[2].DNF)
	assert.Nil(t, results[2].FinishTime)
}

func TestFinishRace_Idempotent(t *testing.T) {
	room, players := testRoom(t, "a")
	now := time.Now()
	room.StartRace(now, 0)
	clickOut(room, players[0], now)

	first := room.FinishRace()
	require.NotNil(t, first)
	assert.Nil(t, room.FinishRace(), "second trigger must be a no-op")
}

func TestFinishRace_CancelsScheduledWork(t *testing.T) {
	room, _ := testRoom(t, "a")
	room.StartRace(time.Now(), 0)

	fired := make(chan struct{}, 8)
	room.broadcastTask = newTickTask(time.Hour, func() { fired <- struct{}{} })
	room.timeoutTask = newTimerTask(time.Hour, func() { fired <- struct{}{} })

	room.FinishRace()
	assert.Nil(t, room.broadcastTask)
	assert.Nil(t, room.timeoutTask)
	assert.Empty(t, fired)
}

func TestAllActiveFinished(t *testing.T) {
	room, players := testRoom(t, "a", "b")
	now := time.Now()
	room.StartRace(now, 0)

	assert.False(t, room.AllActiveFinished())

	clickOut(room, players[0], now)
	assert.False(t, room.AllActiveFinished())

	players[1].Disconnected = true
	assert.True(t, room.AllActiveFinished())

	players[0].Disconnected = true
	assert.False(t, room.AllActiveFinished(), "a room with nobody connected is torn down, not finished")
}

func TestMigrateHost_SkipsDisconnected(t *testing.T) {
	room, players := testRoom(t, "a", "b", "c")
	players[0].Disconnected = true
	players[1].Disconnected = true

	assert.Equal(t, players[2].ID, room.MigrateHost())
	assert.Equal(t, players[2].ID, room.HostID)
}

func TestResetToLobby(t *testing.T) {
	room, players := testRoom(t, "a", "b", "c")
	now := time.Now()
	room.StartRace(now, 0)
	clickOut(room, players[0], now)
	players[1].Disconnected = true
	room.FinishRace()

	room.ResetToLobby()

	assert.Equal(t, PhaseLobby, room.Phase)
	assert.Equal(t, 2, room.PlayerCount(), "disconnected players are dropped on reset")
	_, gone := room.Player(players[1].ID)
	assert.False(t, gone)
	for _, p := range []*Player{players[0], players[2]} {
		assert.Zero(t, p.Progress)
		assert.Zero(t, p.Clicks)
		assert.Zero(t, p.Rank)
		assert.Nil(t, p.FinishedAt)
		assert.False(t, p.DNF)
		assert.False(t, p.Disconnected)
	}
}

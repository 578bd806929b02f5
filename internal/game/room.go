package game

import (
	"sort"
	"time"

	"github.com/ernie/clickrace/internal/domain"
)

// Phase is a room's lifecycle stage. A client-visible countdown exists between
// the start action and the race start instant, but it is derived from the
// scheduled RaceStartedAt timestamp and never stored as a phase here.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseRacing   Phase = "racing"
	PhaseFinished Phase = "finished"
)

// FullProgress is the click count at which a player finishes
const FullProgress = 100

// Room is an isolated multiplayer session. All state is owned by the game
// loop goroutine; methods must only be called from there.
type Room struct {
	Code          string
	CreatedAt     time.Time
	Phase         Phase
	HostID        string
	RaceStartedAt time.Time

	players       []*Player // join order
	byID          map[string]*Player
	finishedCount int

	broadcastTask *tickTask
	timeoutTask   *timerTask
	graceTask     *timerTask
}

func newRoom(code string, now time.Time) *Room {
	return &Room{
		Code:      code,
		CreatedAt: now,
		Phase:     PhaseLobby,
		byID:      make(map[string]*Player),
	}
}

// AddPlayer creates a player for conn and appends it in join order. The first
// player added becomes host. Color assignment prefers an unused palette entry.
func (r *Room) AddPlayer(conn Conn, name, carModel string, clickInterval time.Duration, now time.Time) *Player {
	used := make([]string, 0, len(r.players))
	for _, p := range r.players {
		used = append(used, p.Color)
	}
	color := domain.PickColor(used, len(r.players))

	p := newPlayer(conn, name, carModel, color, clickInterval, now)
	r.players = append(r.players, p)
	r.byID[p.ID] = p
	if len(r.players) == 1 {
		r.HostID = p.ID
	}
	return p
}

// RemovePlayer drops the player with the given connection id, if present
func (r *Room) RemovePlayer(id string) {
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
}

// Player looks up a player by connection id
func (r *Room) Player(id string) (*Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// PlayerCount returns the number of player records, including disconnected ones
func (r *Room) PlayerCount() int {
	return len(r.players)
}

// ConnectedCount returns the number of players whose connection is still live
func (r *Room) ConnectedCount() int {
	n := 0
	for _, p := range r.players {
		if !p.Disconnected {
			n++
		}
	}
	return n
}

// PlayerInfos returns the public view of every player, in join order
func (r *Room) PlayerInfos() []domain.PlayerInfo {
	infos := make([]domain.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		infos = append(infos, p.Info())
	}
	return infos
}

// Broadcast sends a message to every connected player in the room
func (r *Room) Broadcast(msgType string, data any) {
	for _, p := range r.players {
		p.send(msgType, data)
	}
}

// BroadcastExcept sends a message to every connected player but one
func (r *Room) BroadcastExcept(id string, msgType string, data any) {
	for _, p := range r.players {
		if p.ID != id {
			p.send(msgType, data)
		}
	}
}

// StartRace moves the room from lobby to racing. The race start instant is
// scheduled lead in the future so every client can render a synchronized
// countdown before input opens.
func (r *Room) StartRace(now time.Time, lead time.Duration) {
	r.Phase = PhaseRacing
	r.RaceStartedAt = now.Add(lead)
	r.finishedCount = 0
}

// Click records one input for p. It returns whether the input was accepted
// and whether it made p finish. Inputs are rejected outside the racing
// window, for finished or disconnected players, and when they arrive faster
// than the player's minimum click interval (dropped, not queued).
func (r *Room) Click(p *Player, now time.Time) (accepted, finished bool) {
	if r.Phase != PhaseRacing || now.Before(r.RaceStartedAt) {
		return false, false
	}
	if p.FinishedAt != nil || p.Disconnected {
		return false, false
	}
	if !p.limiter.AllowN(now, 1) {
		return false, false
	}

	if p.Clicks < FullProgress {
		p.Clicks++
	}
	p.Progress = p.Clicks

	if p.Clicks == FullProgress && p.FinishedAt == nil {
		t := now
		p.FinishedAt = &t
		r.finishedCount++
		p.Rank = r.finishedCount
		return true, true
	}
	return true, false
}

// AllActiveFinished reports whether every still-connected player has finished.
// False for a room with no connected players; that case is torn down instead.
func (r *Room) AllActiveFinished() bool {
	active := 0
	for _, p := range r.players {
		if p.Disconnected {
			continue
		}
		active++
		if p.FinishedAt == nil {
			return false
		}
	}
	return active > 0
}

// ProgressUpdates returns the current progress of every player
func (r *Room) ProgressUpdates() []domain.ProgressEntry {
	updates := make([]domain.ProgressEntry, 0, len(r.players))
	for _, p := range r.players {
		updates = append(updates, domain.ProgressEntry{SocketID: p.ID, Progress: p.Progress})
	}
	return updates
}

// FinishRace moves the room to finished and computes the final standings:
// finished players by rank, then everyone else by descending progress with
// sequential ranks and the DNF flag. Idempotent - a second call returns nil.
// All scheduled work is cancelled before the transition.
func (r *Room) FinishRace() []domain.RaceResult {
	if r.Phase != PhaseRacing {
		return nil
	}
	r.CancelTasks()
	r.Phase = PhaseFinished

	var finished, stragglers []*Player
	for _, p := range r.players {
		if p.FinishedAt != nil {
			finished = append(finished, p)
		} else {
			stragglers = append(stragglers, p)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].Rank < finished[j].Rank
	})
	// Stable keeps join order as the tie-break for equal progress
	sort.SliceStable(stragglers, func(i, j int) bool {
		return stragglers[i].Progress > stragglers[j].Progress
	})

	rank := len(finished)
	for _, p := range stragglers {
		rank++
		p.Rank = rank
		p.DNF = true
	}

	results := make([]domain.RaceResult, 0, len(r.players))
	for _, p := range append(finished, stragglers...) {
		res := domain.RaceResult{
			SocketID: p.ID,
			Name:     p.Name,
			CarModel: p.CarModel,
			CarColor: p.Color,
			Rank:     p.Rank,
			DNF:      p.DNF,
		}
		if p.FinishedAt != nil {
			ms := p.FinishedAt.Sub(r.RaceStartedAt).Milliseconds()
			res.FinishTime = &ms
		}
		results = append(results, res)
	}
	return results
}

// ResetToLobby returns a finished room to the lobby. Players whose connection
// dropped during the race are removed for good; everyone else has their race
// state cleared.
func (r *Room) ResetToLobby() {
	kept := r.players[:0]
	for _, p := range r.players {
		if p.Disconnected {
			delete(r.byID, p.ID)
			continue
		}
		p.resetRace()
		kept = append(kept, p)
	}
	r.players = kept
	r.finishedCount = 0
	r.RaceStartedAt = time.Time{}
	r.Phase = PhaseLobby
}

// MigrateHost promotes the first still-connected player in join order and
// returns its id, or "" when nobody is left to promote.
func (r *Room) MigrateHost() string {
	for _, p := range r.players {
		if !p.Disconnected {
			r.HostID = p.ID
			return p.ID
		}
	}
	r.HostID = ""
	return ""
}

// CancelTasks stops the room's scheduled broadcast, timeout and grace work.
// Safe to call on any phase and any number of times.
func (r *Room) CancelTasks() {
	r.broadcastTask.Cancel()
	r.timeoutTask.Cancel()
	r.graceTask.Cancel()
	r.broadcastTask = nil
	r.timeoutTask = nil
	r.graceTask = nil
}

// Expired reports whether the room has outlived maxAge
func (r *Room) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(r.CreatedAt) > maxAge
}

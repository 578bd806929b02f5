package game

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/ernie/clickrace/internal/config"
	"github.com/ernie/clickrace/internal/domain"
)

// Service is the game core: the room registry, the session handlers and the
// single event loop that serializes them. Every mutation of room state runs
// as a closure on that loop - connection read pumps and timers only ever post
// work into it - so handlers are plain sequential code with no locks.
type Service struct {
	cfg      config.GameConfig
	registry *Registry
	commands chan func()
	memberOf map[string]string // connection id -> room code
}

// NewService creates the game core with the given tuning
func NewService(cfg config.GameConfig) *Service {
	return &Service{
		cfg:      cfg,
		registry: NewRegistry(),
		commands: make(chan func(), 1024),
		memberOf: make(map[string]string),
	}
}

// Run drains the event loop until ctx is cancelled. It also owns the
// periodic TTL sweep over the registry.
func (s *Service) Run(ctx context.Context) {
	sweep := newTickTask(s.cfg.SweepInterval, func() {
		s.post(s.sweepRooms)
	})
	defer sweep.Cancel()

	for {
		select {
		case fn := <-s.commands:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// post schedules fn on the game loop
func (s *Service) post(fn func()) {
	s.commands <- fn
}

// HandleMessage dispatches an inbound client message onto the game loop.
// Safe to call from any goroutine.
func (s *Service) HandleMessage(c Conn, env domain.Envelope) {
	s.post(func() { s.dispatch(c, env) })
}

// HandleDisconnect reports a dropped connection. Safe to call from any
// goroutine.
func (s *Service) HandleDisconnect(c Conn) {
	s.post(func() { s.handleLeave(c) })
}

// Stats returns the current room and client counts for the health surface.
// Must only be called while Run is active.
func (s *Service) Stats() (rooms, clients int) {
	done := make(chan struct{})
	s.post(func() {
		rooms = s.registry.Len()
		clients = len(s.memberOf)
		close(done)
	})
	<-done
	return rooms, clients
}

// dispatch routes one inbound message. Malformed payloads and stale
// references are dropped: nothing a single connection sends may disturb
// other rooms or connections.
func (s *Service) dispatch(c Conn, env domain.Envelope) {
	switch env.Type {
	case domain.MsgCreateRoom:
		var req domain.CreateRoomRequest
		if !decode(c, env, &req) {
			return
		}
		s.handleCreate(c, req)
	case domain.MsgJoinRoom:
		var req domain.JoinRoomRequest
		if !decode(c, env, &req) {
			return
		}
		s.handleJoin(c, req)
	case domain.MsgRejoinRoom:
		var req domain.JoinRoomRequest
		if !decode(c, env, &req) {
			return
		}
		s.handleRejoin(c, req)
	case domain.MsgStartRace:
		var req domain.RoomRequest
		if !decode(c, env, &req) {
			return
		}
		s.handleStart(c, req)
	case domain.MsgClick:
		var req domain.RoomRequest
		if !decode(c, env, &req) {
			return
		}
		s.handleClick(c, req)
	case domain.MsgResetRoom:
		var req domain.RoomRequest
		if !decode(c, env, &req) {
			return
		}
		s.handleReset(c, req)
	case domain.MsgLeaveRoom:
		s.handleLeave(c)
	default:
		log.Printf("Unknown message type %q from %s", env.Type, c.ID())
	}
}

func decode(c Conn, env domain.Envelope, v any) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		log.Printf("Malformed %s payload from %s: %v", env.Type, c.ID(), err)
		return false
	}
	return true
}

func (s *Service) handleCreate(c Conn, req domain.CreateRoomRequest) {
	if _, ok := s.memberOf[c.ID()]; ok {
		return // already in a room, stale create
	}

	now := time.Now()
	room, err := s.registry.Create(now)
	if err != nil {
		log.Printf("Failed to create room: %v", err)
		return
	}

	p := room.AddPlayer(c, req.Name, req.CarModel, s.cfg.ClickInterval, now)
	s.memberOf[c.ID()] = room.Code

	log.Printf("Room %s created by %s (%s)", room.Code, p.Name, c.ID())
	c.Send(domain.MsgRoomCreated, domain.RoomCreated{Code: room.Code, Player: p.Info()})
}

func (s *Service) handleJoin(c Conn, req domain.JoinRoomRequest) {
	if _, ok := s.memberOf[c.ID()]; ok {
		c.Send(domain.MsgJoinError, domain.ErrorReason{Reason: "already in a room"})
		return
	}
	room, ok := s.registry.Lookup(req.Code)
	if !ok {
		c.Send(domain.MsgJoinError, domain.ErrorReason{Reason: "room not found"})
		return
	}
	if room.Phase != PhaseLobby {
		c.Send(domain.MsgJoinError, domain.ErrorReason{Reason: "race already started"})
		return
	}
	if room.PlayerCount() >= s.cfg.MaxPlayers {
		c.Send(domain.MsgJoinError, domain.ErrorReason{Reason: "room is full"})
		return
	}

	s.admit(c, room, req.Name, req.CarModel)
}

func (s *Service) handleRejoin(c Conn, req domain.JoinRoomRequest) {
	if _, ok := s.memberOf[c.ID()]; ok {
		c.Send(domain.MsgRejoinFailed, domain.ErrorReason{Reason: "already in a room"})
		return
	}
	room, ok := s.registry.Lookup(req.Code)
	if !ok {
		c.Send(domain.MsgRejoinFailed, domain.ErrorReason{Reason: "room not found"})
		return
	}

	// Rejoin skips the phase and capacity gates so a reconnecting client can
	// resume mid-race. It gets a fresh player record: counted progress
	// restarts at zero.
	s.admit(c, room, req.Name, req.CarModel)
}

// admit adds a player to a room and announces the arrival
func (s *Service) admit(c Conn, room *Room, name, carModel string) {
	p := room.AddPlayer(c, name, carModel, s.cfg.ClickInterval, time.Now())
	s.memberOf[c.ID()] = room.Code

	log.Printf("Player %s (%s) joined room %s", p.Name, c.ID(), room.Code)
	c.Send(domain.MsgRoomJoined, domain.RoomJoined{
		Code:    room.Code,
		Players: room.PlayerInfos(),
		HostID:  room.HostID,
	})
	room.BroadcastExcept(c.ID(), domain.MsgPlayerJoined, domain.PlayerJoined{Player: p.Info()})
}

func (s *Service) handleStart(c Conn, req domain.RoomRequest) {
	room, _, ok := s.roomAndPlayer(c, req.RoomCode)
	if !ok {
		return
	}
	if room.HostID != c.ID() {
		return // host-only, silently ignored
	}
	if room.Phase != PhaseLobby {
		c.Send(domain.MsgStartError, domain.ErrorReason{Reason: "race already started"})
		return
	}
	if room.PlayerCount() < s.cfg.MinPlayers {
		c.Send(domain.MsgStartError, domain.ErrorReason{Reason: "not enough players"})
		return
	}

	room.StartRace(time.Now(), s.cfg.CountdownLead)
	s.armRaceTasks(room)

	log.Printf("Room %s race starting at %s", room.Code, room.RaceStartedAt.Format(time.RFC3339Nano))
	room.Broadcast(domain.MsgRaceStarted, domain.RaceStarted{
		StartTime: room.RaceStartedAt.UnixMilli(),
	})
}

// armRaceTasks starts the broadcast loop and the maximum-duration timeout.
// Both callbacks hop onto the game loop and re-validate the room's phase
// before touching anything, so they are inert once the race has ended by any
// other path.
func (s *Service) armRaceTasks(room *Room) {
	room.broadcastTask = newTickTask(s.cfg.BroadcastInterval, func() {
		s.post(func() { s.broadcastProgress(room) })
	})
	room.timeoutTask = newTimerTask(s.cfg.CountdownLead+s.cfg.RaceTimeout, func() {
		s.post(func() { s.endRace(room, "timeout") })
	})
}

func (s *Service) broadcastProgress(room *Room) {
	if !s.live(room) || room.Phase != PhaseRacing {
		return
	}
	room.Broadcast(domain.MsgProgressUpdate, domain.ProgressUpdate{
		Updates: room.ProgressUpdates(),
	})
}

func (s *Service) handleClick(c Conn, req domain.RoomRequest) {
	room, p, ok := s.roomAndPlayer(c, req.RoomCode)
	if !ok {
		return
	}

	now := time.Now()
	accepted, finished := room.Click(p, now)
	if !accepted || !finished {
		return
	}

	elapsed := p.FinishedAt.Sub(room.RaceStartedAt).Milliseconds()
	log.Printf("Room %s: %s finished rank %d in %dms", room.Code, p.Name, p.Rank, elapsed)
	room.Broadcast(domain.MsgPlayerFinished, domain.PlayerFinished{
		SocketID: p.ID,
		Rank:     p.Rank,
		Time:     elapsed,
	})

	if p.Rank == 1 {
		s.armGracePeriod(room, now)
	}
	if room.AllActiveFinished() {
		s.endRace(room, "all finished")
	}
}

// armGracePeriod bounds the race once a winner exists: remaining players get
// a fixed window, after which the race is cut off server-side.
func (s *Service) armGracePeriod(room *Room, now time.Time) {
	endsAt := now.Add(s.cfg.FirstFinishGrace)
	room.graceTask = newTimerTask(s.cfg.FirstFinishGrace, func() {
		s.post(func() { s.endRace(room, "grace period elapsed") })
	})
	room.Broadcast(domain.MsgFirstFinisherCountdown, domain.FirstFinisherCountdown{
		EndsAt: endsAt.UnixMilli(),
	})
}

// live reports whether room is still the registered room for its code.
// Timer callbacks race against room deletion; a callback that fires for a
// deleted room must be a guaranteed no-op.
func (s *Service) live(room *Room) bool {
	current, ok := s.registry.Lookup(room.Code)
	return ok && current == room
}

// endRace drives racing -> finished. Every path that ends a race goes
// through here: normal completion, grace cutoff, timeout and
// disconnect-triggered completion. Idempotent via FinishRace.
func (s *Service) endRace(room *Room, reason string) {
	if !s.live(room) {
		return
	}
	results := room.FinishRace()
	if results == nil {
		return
	}
	log.Printf("Room %s race finished (%s), %d results", room.Code, reason, len(results))
	room.Broadcast(domain.MsgRaceFinished, domain.RaceFinished{Results: results})
}

func (s *Service) handleReset(c Conn, req domain.RoomRequest) {
	room, _, ok := s.roomAndPlayer(c, req.RoomCode)
	if !ok {
		return
	}
	if room.HostID != c.ID() || room.Phase != PhaseFinished {
		return
	}

	room.ResetToLobby()
	log.Printf("Room %s reset to lobby by host", room.Code)
	room.Broadcast(domain.MsgRoomReset, domain.RoomReset{
		Players: room.PlayerInfos(),
		HostID:  room.HostID,
	})
}

// handleLeave covers both an explicit leave-room and a dropped connection
func (s *Service) handleLeave(c Conn) {
	id := c.ID()
	code, ok := s.memberOf[id]
	if !ok {
		return
	}
	delete(s.memberOf, id)

	room, ok := s.registry.Lookup(code)
	if !ok {
		return
	}
	p, ok := room.Player(id)
	if !ok {
		return
	}
	wasHost := room.HostID == id

	switch room.Phase {
	case PhaseRacing:
		// Keep the record so finish and DNF bookkeeping stays correct
		p.Disconnected = true
		log.Printf("Room %s: %s disconnected mid-race", room.Code, p.Name)

		if room.ConnectedCount() == 0 {
			s.registry.Remove(room.Code)
			return
		}
		room.Broadcast(domain.MsgPlayerLeft, domain.PlayerLeft{SocketID: id})
		if wasHost {
			newHost := room.MigrateHost()
			room.Broadcast(domain.MsgHostChanged, domain.HostChanged{NewHostID: newHost})
		}
		if room.AllActiveFinished() {
			s.endRace(room, "last active player finished")
		}

	default: // lobby, finished
		room.RemovePlayer(id)
		log.Printf("Room %s: %s left", room.Code, p.Name)

		if room.PlayerCount() == 0 {
			s.registry.Remove(room.Code)
			return
		}
		left := domain.PlayerLeft{SocketID: id}
		if wasHost {
			left.NewHostID = room.MigrateHost()
		}
		room.Broadcast(domain.MsgPlayerLeft, left)
	}
}

// roomAndPlayer resolves the sender's room and player record. Stale
// references (connection not in a room, room since deleted, player record
// gone, or a roomCode that no longer matches the sender's room) are treated
// as a no-op.
func (s *Service) roomAndPlayer(c Conn, claimedCode string) (*Room, *Player, bool) {
	code, ok := s.memberOf[c.ID()]
	if !ok {
		return nil, nil, false
	}
	if claimedCode != "" && !strings.EqualFold(claimedCode, code) {
		return nil, nil, false
	}
	room, ok := s.registry.Lookup(code)
	if !ok {
		delete(s.memberOf, c.ID())
		return nil, nil, false
	}
	p, ok := room.Player(c.ID())
	if !ok {
		delete(s.memberOf, c.ID())
		return nil, nil, false
	}
	return room, p, true
}

func (s *Service) sweepRooms() {
	n := s.registry.SweepExpired(time.Now(), s.cfg.RoomTTL)
	if n == 0 {
		return
	}
	// Drop membership entries that point at swept rooms
	for id, code := range s.memberOf {
		if _, ok := s.registry.Lookup(code); !ok {
			delete(s.memberOf, id)
		}
	}
	log.Printf("TTL sweep removed %d room(s), %d remaining", n, s.registry.Len())
}

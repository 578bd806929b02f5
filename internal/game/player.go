package game

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/ernie/clickrace/internal/domain"
)

// Player is one participant in a room, bound to a connection. All fields are
// owned by the game loop; nothing here is safe for concurrent access.
type Player struct {
	ID           string
	Name         string
	CarModel     string
	Color        string
	JoinedAt     time.Time
	Clicks       int
	Progress     int
	FinishedAt   *time.Time
	Rank         int
	DNF          bool
	Disconnected bool

	conn    Conn
	limiter *rate.Limiter
}

func newPlayer(conn Conn, name, carModel, color string, clickInterval time.Duration, now time.Time) *Player {
	limit := rate.Inf
	if clickInterval > 0 {
		limit = rate.Every(clickInterval)
	}
	return &Player{
		ID:       conn.ID(),
		Name:     domain.SanitizeName(name),
		CarModel: domain.NormalizeCarModel(carModel),
		Color:    color,
		JoinedAt: now,
		conn:     conn,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Info returns the public wire view of the player
func (p *Player) Info() domain.PlayerInfo {
	return domain.PlayerInfo{
		SocketID: p.ID,
		Name:     p.Name,
		CarModel: p.CarModel,
		CarColor: p.Color,
		Progress: p.Progress,
	}
}

// send delivers a message to the player's connection, skipping players whose
// connection has dropped
func (p *Player) send(msgType string, data any) {
	if p.Disconnected {
		return
	}
	p.conn.Send(msgType, data)
}

// resetRace clears all race-specific state ahead of a new lobby phase
func (p *Player) resetRace() {
	p.Clicks = 0
	p.Progress = 0
	p.FinishedAt = nil
	p.Rank = 0
	p.DNF = false
	p.Disconnected = false
}

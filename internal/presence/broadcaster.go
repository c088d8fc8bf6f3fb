package presence

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/MEDICALCOR/medicalcor-core-sub006/internal/types"
	"github.com/rs/zerolog"
)

// Broadcaster fans a payload out to connected dashboard clients
type Broadcaster interface {
	Broadcast(message []byte)
}

// RosterBroadcaster pushes roster snapshots to the dashboard hub. Pushes
// are change-driven and debounced: a roster mutation marks the broadcaster
// dirty, and the loop ships at most one snapshot per MinGap.
type RosterBroadcaster struct {
	tracker *Tracker
	hub     Broadcaster
	minGap  time.Duration
	dirty   atomic.Bool
	logger  zerolog.Logger
}

// NewRosterBroadcaster creates a debounced roster broadcaster
func NewRosterBroadcaster(tracker *Tracker, hub Broadcaster, minGap time.Duration, logger zerolog.Logger) *RosterBroadcaster {
	if minGap <= 0 {
		minGap = 500 * time.Millisecond
	}
	return &RosterBroadcaster{
		tracker: tracker,
		hub:     hub,
		minGap:  minGap,
		logger:  logger.With().Str("component", "roster").Logger(),
	}
}

// MarkDirty flags that the roster changed since the last broadcast
func (b *RosterBroadcaster) MarkDirty() {
	b.dirty.Store(true)
}

// Start runs the broadcast loop until the context is cancelled
func (b *RosterBroadcaster) Start(ctx context.Context) {
	ticker := time.NewTicker(b.minGap)
	defer ticker.Stop()

	b.logger.Info().Dur("min_gap", b.minGap).Msg("roster broadcaster started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("roster broadcaster stopped")
			return

		case <-ticker.C:
			if !b.dirty.Swap(false) {
				continue
			}
			b.broadcastSnapshot()
		}
	}
}

func (b *RosterBroadcaster) broadcastSnapshot() {
	snapshot := types.RosterSnapshot{
		Type:      "roster",
		Timestamp: time.Now(),
		Agents:    b.tracker.Snapshot(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to marshal roster snapshot")
		return
	}

	b.hub.Broadcast(data)
	b.logger.Debug().
		Int("agents", len(snapshot.Agents)).
		Msg("broadcasted roster snapshot")
}

// Sweeper periodically marks stale agents and evicts long-disconnected
// ones, marking the roster dirty when anything changed
type Sweeper struct {
	tracker     *Tracker
	broadcaster *RosterBroadcaster
	interval    time.Duration
	maxAge      time.Duration
	logger      zerolog.Logger
}

// NewSweeper creates a roster sweeper
func NewSweeper(tracker *Tracker, broadcaster *RosterBroadcaster, interval, maxAge time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = StaleThreshold / 2
	}
	if maxAge <= 0 {
		maxAge = 5 * time.Minute
	}
	return &Sweeper{
		tracker:     tracker,
		broadcaster: broadcaster,
		interval:    interval,
		maxAge:      maxAge,
		logger:      logger.With().Str("component", "roster_sweeper").Logger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			marked := s.tracker.CheckStaleAgents()
			removed := s.tracker.RemoveDisconnected(s.maxAge)
			if marked > 0 || removed > 0 {
				s.logger.Info().
					Int("stale", marked).
					Int("removed", removed).
					Msg("roster sweep")
				if s.broadcaster != nil {
					s.broadcaster.MarkDirty()
				}
			}
		}
	}
}

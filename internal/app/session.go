package app

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pion/webrtc/v4"

	"github.com/DannyahIA/nexus-sub002/internal/core"
	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

// SessionState is the lifecycle phase of one peer session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
	StateRecovering
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateRecovering:
		return "recovering"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// PeerSession is the lifecycle record for one remote participant. All fields
// are mutated only by the engine, under its lock; HealthMonitor and the HTTP
// surface read snapshots.
type PeerSession struct {
	UserID   domain.UserID
	username string // set once at join, never rewritten

	conn core.MediaConnection
	// gen tags the current connection so callbacks from a replaced
	// connection are recognized as stale and dropped.
	gen int

	state           SessionState
	iceMode         core.IceMode
	connectionState webrtc.PeerConnectionState
	iceState        webrtc.ICEConnectionState
	lastStateChange time.Time

	reconnectAttempt int
	turnFallbackUsed bool
	retry            *backoff.ExponentialBackOff
	reconnectTimer   *time.Timer

	// opInFlight serializes rebuilds: a new creation/fallback/reconnect for
	// this peer never starts while a prior one is still running.
	opInFlight bool

	// remote status as last broadcast over signaling
	muted        bool
	videoEnabled bool
}

func newPeerSession(peer *domain.Peer, initialInterval time.Duration) *PeerSession {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return &PeerSession{
		UserID:          peer.ID,
		username:        peer.Username,
		state:           StateIdle,
		iceMode:         core.IceModeNormal,
		lastStateChange: time.Now(),
		retry:           b,
	}
}

// Username is immutable for the session lifetime.
func (s *PeerSession) Username() string { return s.username }

func (s *PeerSession) setState(st SessionState) {
	s.state = st
	s.lastStateChange = time.Now()
}

// resetRetry rearms the backoff ladder after a successful recovery.
func (s *PeerSession) resetRetry() {
	s.reconnectAttempt = 0
	s.retry.Reset()
}

// cancelReconnectTimer stops a pending attempt, if any.
func (s *PeerSession) cancelReconnectTimer() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// SessionSnapshot is a read-only view for APIs (no transport fields).
type SessionSnapshot struct {
	UserID           domain.UserID `json:"user_id"`
	Username         string        `json:"username"`
	State            string        `json:"state"`
	IceMode          core.IceMode  `json:"ice_mode"`
	ConnectionState  string        `json:"connection_state"`
	IceState         string        `json:"ice_state"`
	ReconnectAttempt int           `json:"reconnect_attempt"`
	TurnFallbackUsed bool          `json:"turn_fallback_used"`
	Muted            bool          `json:"muted"`
	VideoEnabled     bool          `json:"video_enabled"`
	LastStateChange  time.Time     `json:"last_state_change"`
}

func (s *PeerSession) snapshot() SessionSnapshot {
	return SessionSnapshot{
		UserID:           s.UserID,
		Username:         s.username,
		State:            s.state.String(),
		IceMode:          s.iceMode,
		ConnectionState:  s.connectionState.String(),
		IceState:         s.iceState.String(),
		ReconnectAttempt: s.reconnectAttempt,
		TurnFallbackUsed: s.turnFallbackUsed,
		Muted:            s.muted,
		VideoEnabled:     s.videoEnabled,
		LastStateChange:  s.lastStateChange,
	}
}

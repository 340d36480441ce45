package app

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/config"
	"github.com/DannyahIA/nexus-sub002/internal/core"
	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

var (
	ErrEngineClosed      = errors.New("engine closed")
	ErrUnknownPeer       = errors.New("unknown peer")
	ErrSessionTerminated = errors.New("session terminated")
	ErrOperationInFlight = errors.New("operation already in flight for peer")
)

// Engine owns the full mesh: one PeerSession per remote participant, the
// registry they live in, and the event bus observers listen on. All session
// mutation is serialized under e.mu; per-peer rebuilds are additionally
// gated by the session's opInFlight flag.
type Engine struct {
	mu sync.Mutex

	localID  domain.UserID
	factory  core.ConnectionFactory
	signaler core.Signaler
	bus      *Bus
	registry *Registry

	localTracks map[webrtc.RTPCodecType]core.LocalTrack

	reconnectInitial time.Duration
	reconnectMax     int

	closed bool
}

func NewEngine(localID domain.UserID, factory core.ConnectionFactory, signaler core.Signaler, bus *Bus, rc config.ReconnectConfig) *Engine {
	return &Engine{
		localID:          localID,
		factory:          factory,
		signaler:         signaler,
		bus:              bus,
		registry:         NewRegistry(),
		localTracks:      make(map[webrtc.RTPCodecType]core.LocalTrack),
		reconnectInitial: rc.InitialInterval,
		reconnectMax:     rc.MaxAttempts,
	}
}

func (e *Engine) Bus() *Bus           { return e.bus }
func (e *Engine) Registry() *Registry { return e.registry }

// Sessions returns read-only views of every live session.
func (e *Engine) Sessions() []SessionSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Snapshot()
}

// SetLocalTrack registers an already-acquired local track. Tracks registered
// before a session is created are attached at creation time.
func (e *Engine) SetLocalTrack(t core.LocalTrack) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.localTracks[t.Kind()] = t
}

// LocalTrack returns the registered track of the given kind, or nil.
func (e *Engine) LocalTrack(kind webrtc.RTPCodecType) core.LocalTrack {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.localTracks[kind]
}

// emission defers bus publishes until after e.mu is released, so subscriber
// callbacks can safely call back into the engine.
type emission struct {
	topic   Topic
	payload any
}

func (e *Engine) publish(emits []emission) {
	for _, em := range emits {
		e.bus.Publish(em.topic, em.payload)
	}
}

// HandlePeerJoined creates the session and connection for a remote
// participant. Creation is idempotent: a second join signal for a live
// session is ignored, so there is never more than one connection per user.
func (e *Engine) HandlePeerJoined(userID domain.UserID, username string) {
	peer, err := domain.NewPeer(userID, username)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.engine").Str("user_id", string(userID)).Msg("rejecting join")
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if _, ok := e.registry.Get(userID); ok {
		e.mu.Unlock()
		log.Warn().Str("module", "app.engine").Str("user_id", string(userID)).Msg("duplicate join ignored")
		return
	}

	sess := newPeerSession(peer, e.reconnectInitial)
	sess.setState(StateConnecting)
	e.registry.put(sess)

	if err := e.establishLocked(sess, core.IceModeNormal, false); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(userID)).Msg("initial connection failed")
	}
	e.mu.Unlock()

	e.publish([]emission{{TopicUserJoined, UserJoinedEvent{UserID: userID, Username: peer.Username}}})
}

// HandlePeerLeft tears the session down: pending timers cancelled, the
// connection closed, the registry entry removed.
func (e *Engine) HandlePeerLeft(userID domain.UserID) {
	e.mu.Lock()
	sess, ok := e.registry.Get(userID)
	if !ok {
		e.mu.Unlock()
		return
	}
	e.teardownLocked(sess)
	e.registry.remove(userID)
	e.mu.Unlock()

	e.publish([]emission{{TopicUserLeft, UserLeftEvent{UserID: userID}}})
}

// HandleOffer answers a remote offer. On offer glare (both sides offered at
// once) the lexicographically lower user ID stays the offerer and the other
// side's offer is dropped.
func (e *Engine) HandleOffer(from domain.UserID, sdp webrtc.SessionDescription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.registry.Get(from)
	if !ok {
		log.Warn().Str("module", "app.engine").Str("user_id", string(from)).Msg("offer from unknown peer ignored")
		return
	}
	if sess.state == StateConnecting && sess.conn != nil && e.localID < from {
		log.Info().Str("module", "app.engine").Str("user_id", string(from)).Msg("offer glare, keeping own offer")
		return
	}

	var (
		answer *webrtc.SessionDescription
		err    error
	)
	if sess.conn != nil && sess.state == StateConnected {
		// remote-initiated ICE restart on the live connection
		answer, err = sess.conn.ApplyOfferAndCreateAnswer(sdp)
	} else {
		answer, err = e.answerWithFreshConnectionLocked(sess, sdp)
	}
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(from)).Msg("answering offer failed")
		return
	}
	if err := e.signaler.SendAnswer(from, *answer); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(from)).Msg("sending answer failed")
	}
}

// answerWithFreshConnectionLocked rebuilds the session connection in the
// answerer role: the remote offer is applied to a brand-new connection and
// the old one, if any, is closed before being discarded.
func (e *Engine) answerWithFreshConnectionLocked(sess *PeerSession, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if sess.opInFlight {
		return nil, ErrOperationInFlight
	}
	sess.opInFlight = true
	defer func() { sess.opInFlight = false }()

	conn, err := e.factory.NewConnection(sess.iceMode)
	if err != nil {
		return nil, err
	}
	if err := e.attachLocalTracksLocked(conn); err != nil {
		closeQuiet(conn, sess.UserID)
		return nil, err
	}

	e.swapConnectionLocked(sess, conn)
	// the remote offer is the recovery; a still-armed attempt would only
	// discard the connection we are about to answer
	sess.cancelReconnectTimer()
	sess.setState(StateConnecting)

	return conn.ApplyOfferAndCreateAnswer(offer)
}

// HandleAnswer applies the remote answer to our outstanding offer.
func (e *Engine) HandleAnswer(from domain.UserID, sdp webrtc.SessionDescription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.registry.Get(from)
	if !ok || sess.conn == nil {
		log.Warn().Str("module", "app.engine").Str("user_id", string(from)).Msg("answer without session ignored")
		return
	}
	if err := sess.conn.ApplyAnswer(sdp); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(from)).Msg("applying answer failed")
	}
}

// HandleCandidate applies a remote ICE candidate.
func (e *Engine) HandleCandidate(from domain.UserID, candidate webrtc.ICECandidateInit) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, ok := e.registry.Get(from)
	if !ok || sess.conn == nil {
		log.Warn().Str("module", "app.engine").Str("user_id", string(from)).Msg("candidate without session ignored")
		return
	}
	if err := sess.conn.AddICECandidate(candidate); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(from)).Msg("adding candidate failed")
	}
}

// HandleMuteStatus records the remote mute flag. State-only update: it never
// touches the username or the connection.
func (e *Engine) HandleMuteStatus(userID domain.UserID, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.registry.Get(userID); ok {
		sess.muted = muted
	}
}

// HandleVideoStatus records the remote video flag. State-only update.
func (e *Engine) HandleVideoStatus(userID domain.UserID, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.registry.Get(userID); ok {
		sess.videoEnabled = enabled
	}
}

// Close tears down every session. Safe to call once at shutdown.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, sess := range e.registry.all() {
		e.teardownLocked(sess)
		e.registry.remove(sess.UserID)
	}
	log.Info().Str("module", "app.engine").Msg("engine closed")
}

// establishLocked builds a fresh connection for the session in the offerer
// role: create, attach local tracks, wire observers, swap (closing the old
// connection), offer, send. Callers hold e.mu.
func (e *Engine) establishLocked(sess *PeerSession, mode core.IceMode, iceRestart bool) error {
	if sess.opInFlight {
		return ErrOperationInFlight
	}
	sess.opInFlight = true
	defer func() { sess.opInFlight = false }()

	conn, err := e.factory.NewConnection(mode)
	if err != nil {
		return err
	}
	if err := e.attachLocalTracksLocked(conn); err != nil {
		closeQuiet(conn, sess.UserID)
		return err
	}

	sess.iceMode = mode
	e.swapConnectionLocked(sess, conn)

	offer, err := conn.CreateOffer(iceRestart)
	if err != nil {
		return err
	}
	if err := e.signaler.SendOffer(sess.UserID, *offer); err != nil {
		// recoverable: the next scheduled reconnection attempt re-offers
		log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(sess.UserID)).Msg("sending offer failed")
	}
	return nil
}

// swapConnectionLocked installs conn as the session's single live connection.
// The generation counter is bumped first so late callbacks from the old
// connection are dropped, then the old connection is closed. The close is
// guaranteed even when the caller's later steps fail.
func (e *Engine) swapConnectionLocked(sess *PeerSession, conn core.MediaConnection) {
	old := sess.conn
	sess.gen++
	sess.conn = conn
	e.wireObservers(sess.UserID, sess.gen, conn)
	if old != nil {
		closeQuiet(old, sess.UserID)
	}
}

func (e *Engine) attachLocalTracksLocked(conn core.MediaConnection) error {
	// audio first, then video, for stable sender ordering
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		t, ok := e.localTracks[kind]
		if !ok {
			continue
		}
		if _, err := conn.AddTrack(t); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) wireObservers(userID domain.UserID, gen int, conn core.MediaConnection) {
	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		if err := e.signaler.SendCandidate(userID, c); err != nil {
			log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(userID)).Msg("sending candidate failed")
		}
	})
	conn.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		e.onConnectionState(userID, gen, st)
	})
	conn.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
		e.onICEState(userID, gen, st)
	})
}

// teardownLocked is the single authoritative close path for a session:
// cancel pending timers, close the connection, mark terminated.
func (e *Engine) teardownLocked(sess *PeerSession) {
	sess.cancelReconnectTimer()
	if sess.conn != nil {
		closeQuiet(sess.conn, sess.UserID)
		sess.conn = nil
	}
	sess.gen++
	sess.setState(StateTerminated)
}

// closeQuiet closes a connection being discarded. Failures are logged, never
// propagated: the resource is gone either way.
func closeQuiet(conn core.MediaConnection, userID domain.UserID) {
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Str("module", "app.engine").Str("user_id", string(userID)).Msg("closing old connection")
	}
}

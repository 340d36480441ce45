package app

import (
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/core"
	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

// onConnectionState handles peer-connection-level transitions. disconnected
// and failed enter the reconnection ladder; connected cancels any pending
// attempt and rearms the ladder from zero.
func (e *Engine) onConnectionState(userID domain.UserID, gen int, st webrtc.PeerConnectionState) {
	e.mu.Lock()
	sess, ok := e.registry.Get(userID)
	if !ok || sess.gen != gen {
		e.mu.Unlock()
		return
	}
	sess.connectionState = st

	var emits []emission
	switch st {
	case webrtc.PeerConnectionStateConnected:
		sess.setState(StateConnected)
		sess.cancelReconnectTimer()
		sess.resetRetry()
		log.Info().Str("module", "app.engine").Str("user_id", string(userID)).Msg("peer connected")
	case webrtc.PeerConnectionStateDisconnected:
		sess.setState(StateDisconnected)
		emits = e.scheduleReconnectLocked(sess)
	case webrtc.PeerConnectionStateFailed:
		sess.setState(StateFailed)
		emits = e.scheduleReconnectLocked(sess)
	}
	e.mu.Unlock()

	e.bus.Publish(TopicConnectionStateChange, ConnectionStateChangeEvent{UserID: userID, State: st})
	e.publish(emits)
}

// onICEState handles ICE-level transitions. A first ICE failure triggers the
// one-shot TURN-only fallback; any later ICE failure falls through to the
// reconnection ladder.
func (e *Engine) onICEState(userID domain.UserID, gen int, st webrtc.ICEConnectionState) {
	e.mu.Lock()
	sess, ok := e.registry.Get(userID)
	if !ok || sess.gen != gen {
		e.mu.Unlock()
		return
	}
	sess.iceState = st

	var emits []emission
	if st == webrtc.ICEConnectionStateFailed {
		if !sess.turnFallbackUsed {
			emits = e.turnFallbackLocked(sess)
		} else {
			emits = e.scheduleReconnectLocked(sess)
		}
	}
	e.mu.Unlock()

	e.publish(emits)
}

// turnFallbackLocked rebuilds the connection in TURN-only mode with an ICE
// restart offer. The latch flips before the rebuild so a failing rebuild
// still never produces a second fallback.
func (e *Engine) turnFallbackLocked(sess *PeerSession) []emission {
	sess.turnFallbackUsed = true
	sess.setState(StateRecovering)
	log.Warn().Str("module", "app.engine").Str("user_id", string(sess.UserID)).Msg("ice failed, falling back to TURN relay")

	if err := e.establishLocked(sess, core.IceModeTurnOnly, true); err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(sess.UserID)).Msg("turn fallback rebuild failed")
		emits := []emission{{TopicTurnFallbackAttempted, TurnFallbackAttemptedEvent{UserID: sess.UserID}}}
		return append(emits, e.scheduleReconnectLocked(sess)...)
	}
	return []emission{{TopicTurnFallbackAttempted, TurnFallbackAttemptedEvent{UserID: sess.UserID}}}
}

// scheduleReconnectLocked arms the next attempt of the ladder: 1s, 2s, 4s.
// The reconnecting event is emitted at scheduling time, so it always follows
// the observed failure within the required window. When the cap is reached
// the session is terminally failed instead.
func (e *Engine) scheduleReconnectLocked(sess *PeerSession) []emission {
	if sess.state == StateTerminated {
		return nil
	}
	if sess.reconnectTimer != nil || sess.opInFlight {
		// an attempt is already pending or running; coalesce
		return nil
	}
	if sess.reconnectAttempt >= e.reconnectMax {
		e.teardownLocked(sess)
		log.Error().Str("module", "app.engine").Str("user_id", string(sess.UserID)).Int("attempts", e.reconnectMax).Msg("reconnection exhausted")
		return []emission{{TopicReconnectionFailed, ReconnectionFailedEvent{UserID: sess.UserID}}}
	}

	sess.reconnectAttempt++
	attempt := sess.reconnectAttempt
	delay := sess.retry.NextBackOff()
	sess.setState(StateRecovering)

	userID := sess.UserID
	sess.reconnectTimer = time.AfterFunc(delay, func() {
		e.runReconnect(userID, attempt)
	})
	log.Info().Str("module", "app.engine").Str("user_id", string(userID)).Int("attempt", attempt).Dur("delay", delay).Msg("reconnect scheduled")

	return []emission{{TopicReconnecting, ReconnectingEvent{UserID: userID, Attempt: attempt}}}
}

// runReconnect fires when a scheduled attempt comes due. The session may
// have connected or been torn down in the meantime; both cancel the attempt.
func (e *Engine) runReconnect(userID domain.UserID, attempt int) {
	e.mu.Lock()
	sess, ok := e.registry.Get(userID)
	if !ok {
		e.mu.Unlock()
		return
	}
	sess.reconnectTimer = nil
	if sess.state == StateTerminated || sess.state == StateConnected {
		e.mu.Unlock()
		return
	}

	log.Info().Str("module", "app.engine").Str("user_id", string(userID)).Int("attempt", attempt).Msg("reconnect attempt starting")
	err := e.establishLocked(sess, sess.iceMode, true)
	var emits []emission
	if err != nil {
		// the rebuild itself failed, so no state callback will ever fire;
		// count this attempt as spent and arm the next one
		log.Error().Err(err).Str("module", "app.engine").Str("user_id", string(userID)).Int("attempt", attempt).Msg("reconnect attempt failed")
		emits = e.scheduleReconnectLocked(sess)
	}
	e.mu.Unlock()

	e.publish(emits)
}

// RecoverPeer funnels an externally requested recovery (health monitor)
// through the same ladder, respecting the attempt cap and backoff.
func (e *Engine) RecoverPeer(userID domain.UserID) error {
	e.mu.Lock()
	sess, ok := e.registry.Get(userID)
	if !ok {
		e.mu.Unlock()
		return ErrUnknownPeer
	}
	if sess.state == StateTerminated {
		e.mu.Unlock()
		return ErrSessionTerminated
	}
	emits := e.scheduleReconnectLocked(sess)
	terminated := sess.state == StateTerminated
	e.mu.Unlock()

	e.publish(emits)
	if terminated {
		return ErrSessionTerminated
	}
	return nil
}

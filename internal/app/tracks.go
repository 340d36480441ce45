package app

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/core"
)

// TrackCoordinator applies local media-track changes across every active
// session at once, without triggering renegotiation. Toggles flip the shared
// track's enabled flag; adding a new kind prefers replacing an existing
// sender slot over an additive AddTrack.
type TrackCoordinator struct {
	engine   *Engine
	signaler core.Signaler
}

func NewTrackCoordinator(engine *Engine, signaler core.Signaler) *TrackCoordinator {
	return &TrackCoordinator{engine: engine, signaler: signaler}
}

// ToggleMute flips the audio track on/off and broadcasts the new status.
// Returns the resulting muted flag; false when no audio track exists.
func (c *TrackCoordinator) ToggleMute() bool {
	t := c.engine.LocalTrack(webrtc.RTPCodecTypeAudio)
	if t == nil {
		log.Warn().Str("module", "app.tracks").Msg("toggle mute without audio track")
		return false
	}
	t.SetEnabled(!t.Enabled())
	muted := !t.Enabled()
	if err := c.signaler.SendMuteStatus(muted); err != nil {
		log.Error().Err(err).Str("module", "app.tracks").Msg("broadcasting mute status")
	}
	log.Info().Str("module", "app.tracks").Bool("muted", muted).Msg("mute toggled")
	return muted
}

// ToggleVideo flips the video track on/off and broadcasts the new status.
// Returns the resulting enabled flag; false when no video track exists.
func (c *TrackCoordinator) ToggleVideo() bool {
	t := c.engine.LocalTrack(webrtc.RTPCodecTypeVideo)
	if t == nil {
		log.Warn().Str("module", "app.tracks").Msg("toggle video without video track")
		return false
	}
	t.SetEnabled(!t.Enabled())
	enabled := t.Enabled()
	if err := c.signaler.SendVideoStatus(enabled); err != nil {
		log.Error().Err(err).Str("module", "app.tracks").Msg("broadcasting video status")
	}
	log.Info().Str("module", "app.tracks").Bool("enabled", enabled).Msg("video toggled")
	return enabled
}

// AddVideoTrack installs a newly acquired video track on every active
// session. A failure on one peer never blocks the others. Returns true when
// the track was registered and applied to at least every reachable session.
func (c *TrackCoordinator) AddVideoTrack(track core.LocalTrack) bool {
	if track == nil || track.Kind() != webrtc.RTPCodecTypeVideo {
		log.Warn().Str("module", "app.tracks").Msg("rejecting non-video track")
		return false
	}

	applied, failed := c.engine.installTrack(track)
	if err := c.signaler.SendVideoStatus(true); err != nil {
		log.Error().Err(err).Str("module", "app.tracks").Msg("broadcasting video status")
	}
	log.Info().Str("module", "app.tracks").Int("applied", applied).Int("failed", failed).Msg("video track installed")
	return failed == 0
}

// installTrack registers the track and fans it out to every session's
// connection, preferring an existing sender slot of the same kind.
func (e *Engine) installTrack(track core.LocalTrack) (applied, failed int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.localTracks[track.Kind()] = track

	for _, sess := range e.registry.all() {
		if sess.conn == nil || sess.state == StateTerminated {
			continue
		}
		added, err := installOnConnection(sess.conn, track)
		if err != nil {
			failed++
			log.Error().Err(err).Str("module", "app.tracks").Str("user_id", string(sess.UserID)).Msg("installing track on peer")
			continue
		}
		if added {
			// a brand-new sender is not in the negotiated session yet; only
			// a fresh offer/answer round makes its media flow
			if err := e.renegotiateLocked(sess); err != nil {
				failed++
				log.Error().Err(err).Str("module", "app.tracks").Str("user_id", string(sess.UserID)).Msg("renegotiating after track add")
				continue
			}
		}
		applied++
	}
	return applied, failed
}

// renegotiateLocked offers the current connection state to the peer without
// an ICE restart; the transport path stays untouched.
func (e *Engine) renegotiateLocked(sess *PeerSession) error {
	offer, err := sess.conn.CreateOffer(false)
	if err != nil {
		return err
	}
	return e.signaler.SendOffer(sess.UserID, *offer)
}

// installOnConnection places the track on conn. added reports whether a new
// sender was created, which obliges the caller to renegotiate.
func installOnConnection(conn core.MediaConnection, track core.LocalTrack) (added bool, err error) {
	for _, sender := range conn.Senders() {
		if sender.Kind() != track.Kind() {
			continue
		}
		cur := sender.Track()
		if cur == nil || !cur.Enabled() || cur.ID() == track.ID() {
			// compatible slot: replace in place, no fresh offer/answer round
			return false, sender.Replace(track)
		}
	}
	// no compatible slot; an additive AddTrack is the only option left
	_, err = conn.AddTrack(track)
	return err == nil, err
}

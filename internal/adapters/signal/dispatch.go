package signal

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

// EventSink receives inbound signaling events. The mesh engine implements it.
type EventSink interface {
	HandlePeerJoined(userID domain.UserID, username string)
	HandlePeerLeft(userID domain.UserID)
	HandleOffer(from domain.UserID, sdp webrtc.SessionDescription)
	HandleAnswer(from domain.UserID, sdp webrtc.SessionDescription)
	HandleCandidate(from domain.UserID, candidate webrtc.ICECandidateInit)
	HandleMuteStatus(userID domain.UserID, muted bool)
	HandleVideoStatus(userID domain.UserID, enabled bool)
}

func (c *Client) dispatch(sink EventSink, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "participant-joined":
		var m participantJoinedMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad participant-joined payload")
			return
		}
		sink.HandlePeerJoined(domain.UserID(m.UserID), m.Username)
	case "participant-left":
		var m participantLeftMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad participant-left payload")
			return
		}
		sink.HandlePeerLeft(domain.UserID(m.UserID))
	case "offer":
		var m offerMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
			return
		}
		sink.HandleOffer(domain.UserID(m.From), webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: m.SDP})
	case "answer":
		var m answerMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
			return
		}
		sink.HandleAnswer(domain.UserID(m.From), webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: m.SDP})
	case "ice-candidate":
		var m candidateMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
			return
		}
		sink.HandleCandidate(domain.UserID(m.From), m.Candidate)
	case "mute-status":
		var m muteStatusMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad mute-status payload")
			return
		}
		sink.HandleMuteStatus(domain.UserID(m.UserID), m.IsMuted)
	case "video-status":
		var m videoStatusMessage
		if err := json.Unmarshal(data, &m); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad video-status payload")
			return
		}
		sink.HandleVideoStatus(domain.UserID(m.UserID), m.IsVideoEnabled)
	case "pong":
		// keepalive reply, nothing to do
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

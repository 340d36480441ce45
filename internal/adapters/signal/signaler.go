package signal

import (
	"github.com/pion/webrtc/v4"

	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

// Client implements core.Signaler for outbound messages.

func (c *Client) SendOffer(target domain.UserID, sdp webrtc.SessionDescription) error {
	return c.sendJSON(offerMessage{Type: "offer", Target: string(target), SDP: sdp.SDP})
}

func (c *Client) SendAnswer(target domain.UserID, sdp webrtc.SessionDescription) error {
	return c.sendJSON(answerMessage{Type: "answer", Target: string(target), SDP: sdp.SDP})
}

func (c *Client) SendCandidate(target domain.UserID, candidate webrtc.ICECandidateInit) error {
	return c.sendJSON(candidateMessage{Type: "ice-candidate", Target: string(target), Candidate: candidate})
}

func (c *Client) SendVideoStatus(enabled bool) error {
	return c.sendJSON(videoStatusMessage{Type: "video-status", IsVideoEnabled: enabled})
}

func (c *Client) SendMuteStatus(muted bool) error {
	return c.sendJSON(muteStatusMessage{Type: "mute-status", IsMuted: muted})
}

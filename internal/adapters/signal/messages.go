package signal

import "github.com/pion/webrtc/v4"

// Wire envelope: every frame is JSON with a "type" discriminator. Inbound
// frames carry fromUserId, outbound frames carry targetUserId; the server
// rewrites one into the other when routing.
type envelope struct {
	Type string `json:"type"`
}

type participantJoinedMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type participantLeftMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type offerMessage struct {
	Type   string `json:"type"`
	From   string `json:"fromUserId,omitempty"`
	Target string `json:"targetUserId,omitempty"`
	SDP    string `json:"sdp"`
}

type answerMessage struct {
	Type   string `json:"type"`
	From   string `json:"fromUserId,omitempty"`
	Target string `json:"targetUserId,omitempty"`
	SDP    string `json:"sdp"`
}

type candidateMessage struct {
	Type      string                  `json:"type"`
	From      string                  `json:"fromUserId,omitempty"`
	Target    string                  `json:"targetUserId,omitempty"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type muteStatusMessage struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	IsMuted bool   `json:"isMuted"`
}

type videoStatusMessage struct {
	Type           string `json:"type"`
	UserID         string `json:"userId,omitempty"`
	IsVideoEnabled bool   `json:"isVideoEnabled"`
}

type pingMessage struct {
	Type string `json:"type"`
}

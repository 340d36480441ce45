// Package core declares the interfaces the mesh engine is built against.
// Adapters own the real transports; the engine never touches pion or the
// websocket directly.
package core

import (
	"github.com/pion/webrtc/v4"

	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

// IceMode selects which ICE server set a new connection is built with.
type IceMode string

const (
	// IceModeNormal carries STUN plus TURN relay entries.
	IceModeNormal IceMode = "normal"
	// IceModeTurnOnly strips STUN so the connection cannot fall back to the
	// direct paths that already failed. Used once per session after an ICE
	// failure.
	IceModeTurnOnly IceMode = "turnOnly"
)

// IceConfigProvider builds validated ICE server lists per mode.
type IceConfigProvider interface {
	Servers(mode IceMode) []webrtc.ICEServer
}

// LocalTrack is an already-acquired local media track. Capture is out of
// scope here; the engine only attaches and toggles tracks it is handed.
type LocalTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	Enabled() bool
	// SetEnabled flips the live/paused state without touching senders,
	// so no renegotiation is ever triggered by a mute/video toggle.
	SetEnabled(enabled bool)
}

// TrackSender is the sender slot a local track occupies on one connection.
type TrackSender interface {
	Kind() webrtc.RTPCodecType
	Track() LocalTrack
	// Replace swaps the outgoing track in place, keeping the negotiated
	// sender slot so no fresh offer/answer round is needed.
	Replace(track LocalTrack) error
}

// MediaConnection abstracts one RTC peer connection. The engine owns exactly
// one live MediaConnection per remote user; a replaced connection is always
// closed before being discarded.
type MediaConnection interface {
	// CreateOffer creates and sets a local offer. iceRestart requests fresh
	// transport negotiation while preserving media context.
	CreateOffer(iceRestart bool) (*webrtc.SessionDescription, error)
	// ApplyOfferAndCreateAnswer applies a remote offer and answers it.
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// ApplyAnswer applies the remote answer to our outstanding offer.
	ApplyAnswer(answer webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	AddTrack(track LocalTrack) (TrackSender, error)
	Senders() []TrackSender

	OnICECandidate(fn func(webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState))

	ConnectionState() webrtc.PeerConnectionState

	// Close releases the underlying transport. Best-effort: the resource is
	// being discarded regardless, so callers log failures and move on.
	Close() error
}

// ConnectionFactory creates MediaConnections for the requested ICE mode.
type ConnectionFactory interface {
	NewConnection(mode IceMode) (MediaConnection, error)
}

// Signaler is the outbound half of the signaling transport. Delivery is
// assumed reliable-enough and ordered per peer; a failed send is recovered
// implicitly by the next scheduled reconnection attempt.
type Signaler interface {
	SendOffer(target domain.UserID, sdp webrtc.SessionDescription) error
	SendAnswer(target domain.UserID, sdp webrtc.SessionDescription) error
	SendCandidate(target domain.UserID, candidate webrtc.ICECandidateInit) error
	SendVideoStatus(enabled bool) error
	SendMuteStatus(muted bool) error
}

package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/core"
)

var errForeignTrack = errors.New("track was not created by this adapter")

// Connection implements core.MediaConnection over one pion PeerConnection.
// The engine replaces a Connection wholesale on fallback/reconnect; nothing
// here is ever rebuilt in place.
type Connection struct {
	pc *webrtc.PeerConnection

	mu      sync.Mutex
	senders []*trackSender
}

func newConnection(pc *webrtc.PeerConnection) *Connection {
	return &Connection{pc: pc}
}

// CreateOffer creates and installs a local offer. Candidates trickle via
// OnICECandidate, so gathering is not awaited here.
func (c *Connection) CreateOffer(iceRestart bool) (*webrtc.SessionDescription, error) {
	var opts *webrtc.OfferOptions
	if iceRestart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	offer, err := c.pc.CreateOffer(opts)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	return c.pc.LocalDescription(), nil
}

func (c *Connection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *Connection) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *Connection) AddTrack(track core.LocalTrack) (core.TrackSender, error) {
	unwrapper, ok := track.(interface{ Unwrap() webrtc.TrackLocal })
	if !ok {
		return nil, errForeignTrack
	}
	sender, err := c.pc.AddTrack(unwrapper.Unwrap())
	if err != nil {
		return nil, err
	}
	ts := &trackSender{sender: sender, kind: track.Kind(), current: track}
	c.mu.Lock()
	c.senders = append(c.senders, ts)
	c.mu.Unlock()
	return ts, nil
}

func (c *Connection) Senders() []core.TrackSender {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.TrackSender, len(c.senders))
	for i, s := range c.senders {
		out[i] = s
	}
	return out
}

func (c *Connection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks end of gathering
		if cand != nil {
			fn(cand.ToJSON())
		}
	})
}

func (c *Connection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *Connection) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	c.pc.OnICEConnectionStateChange(fn)
}

func (c *Connection) ConnectionState() webrtc.PeerConnectionState {
	return c.pc.ConnectionState()
}

func (c *Connection) Close() error {
	err := c.pc.Close()
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.rtc").Msg("peer connection close")
	}
	return err
}

// trackSender pairs a pion RTPSender with the wrapped track occupying it.
type trackSender struct {
	sender *webrtc.RTPSender
	kind   webrtc.RTPCodecType

	mu      sync.Mutex
	current core.LocalTrack
}

func (s *trackSender) Kind() webrtc.RTPCodecType { return s.kind }

func (s *trackSender) Track() core.LocalTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Replace swaps the outgoing track on the negotiated sender slot, so no
// offer/answer round is needed.
func (s *trackSender) Replace(track core.LocalTrack) error {
	unwrapper, ok := track.(interface{ Unwrap() webrtc.TrackLocal })
	if !ok {
		return errForeignTrack
	}
	if err := s.sender.ReplaceTrack(unwrapper.Unwrap()); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = track
	s.mu.Unlock()
	return nil
}

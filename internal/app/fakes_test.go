package app

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/DannyahIA/nexus-sub002/internal/core"
	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

type fakeTrack struct {
	id      string
	kind    webrtc.RTPCodecType
	enabled atomic.Bool
}

func newFakeTrack(id string, kind webrtc.RTPCodecType) *fakeTrack {
	t := &fakeTrack{id: id, kind: kind}
	t.enabled.Store(true)
	return t
}

func (t *fakeTrack) ID() string                { return t.id }
func (t *fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *fakeTrack) Enabled() bool             { return t.enabled.Load() }
func (t *fakeTrack) SetEnabled(enabled bool)   { t.enabled.Store(enabled) }

type fakeSender struct {
	kind webrtc.RTPCodecType

	mu           sync.Mutex
	track        core.LocalTrack
	replaceCalls int
	replaceErr   error
}

func (s *fakeSender) Kind() webrtc.RTPCodecType { return s.kind }

func (s *fakeSender) Track() core.LocalTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

func (s *fakeSender) Replace(track core.LocalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.track = track
	return nil
}

type fakeConn struct {
	mode core.IceMode

	mu               sync.Mutex
	senders          []*fakeSender
	closed           bool
	offerCalls       int
	lastICERestart   bool
	applyOfferCalls  int
	applyAnswerCalls int
	candidates       []webrtc.ICECandidateInit
	connState        webrtc.PeerConnectionState

	offerErr      error
	applyOfferErr error
	addTrackErr   error

	onCandidate func(webrtc.ICECandidateInit)
	onConnState func(webrtc.PeerConnectionState)
	onICEState  func(webrtc.ICEConnectionState)
}

func (c *fakeConn) CreateOffer(iceRestart bool) (*webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offerCalls++
	c.lastICERestart = iceRestart
	if c.offerErr != nil {
		return nil, c.offerErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer"}, nil
}

func (c *fakeConn) ApplyOfferAndCreateAnswer(webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyOfferCalls++
	if c.applyOfferErr != nil {
		return nil, c.applyOfferErr
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"}, nil
}

func (c *fakeConn) ApplyAnswer(webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyAnswerCalls++
	return nil
}

func (c *fakeConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append(c.candidates, candidate)
	return nil
}

func (c *fakeConn) AddTrack(track core.LocalTrack) (core.TrackSender, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.addTrackErr != nil {
		return nil, c.addTrackErr
	}
	s := &fakeSender{kind: track.Kind(), track: track}
	c.senders = append(c.senders, s)
	return s, nil
}

func (c *fakeConn) Senders() []core.TrackSender {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.TrackSender, len(c.senders))
	for i, s := range c.senders {
		out[i] = s
	}
	return out
}

func (c *fakeConn) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCandidate = fn
}

func (c *fakeConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnState = fn
}

func (c *fakeConn) OnICEConnectionStateChange(fn func(webrtc.ICEConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onICEState = fn
}

func (c *fakeConn) ConnectionState() webrtc.PeerConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) offerState() (calls int, iceRestart bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offerCalls, c.lastICERestart
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fireConnectionState simulates the transport callback. The handler is copied
// out first so it never runs under the fake's lock.
func (c *fakeConn) fireConnectionState(st webrtc.PeerConnectionState) {
	c.mu.Lock()
	c.connState = st
	fn := c.onConnState
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (c *fakeConn) fireICEState(st webrtc.ICEConnectionState) {
	c.mu.Lock()
	fn := c.onICEState
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

type fakeFactory struct {
	mu    sync.Mutex
	conns []*fakeConn
	modes []core.IceMode
	err   error
}

func (f *fakeFactory) NewConnection(mode core.IceMode) (core.MediaConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	c := &fakeConn{mode: mode, connState: webrtc.PeerConnectionStateNew}
	f.conns = append(f.conns, c)
	f.modes = append(f.modes, mode)
	return c, nil
}

func (f *fakeFactory) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeFactory) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func (f *fakeFactory) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[len(f.conns)-1]
}

func (f *fakeFactory) allModes() []core.IceMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.IceMode(nil), f.modes...)
}

type fakeSignaler struct {
	mu            sync.Mutex
	offers        []domain.UserID
	answers       []domain.UserID
	candidates    []domain.UserID
	muteStatuses  []bool
	videoStatuses []bool
}

func (s *fakeSignaler) SendOffer(target domain.UserID, _ webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offers = append(s.offers, target)
	return nil
}

func (s *fakeSignaler) SendAnswer(target domain.UserID, _ webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, target)
	return nil
}

func (s *fakeSignaler) SendCandidate(target domain.UserID, _ webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = append(s.candidates, target)
	return nil
}

func (s *fakeSignaler) SendVideoStatus(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoStatuses = append(s.videoStatuses, enabled)
	return nil
}

func (s *fakeSignaler) SendMuteStatus(muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muteStatuses = append(s.muteStatuses, muted)
	return nil
}

func (s *fakeSignaler) offerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offers)
}

// eventRecorder captures bus emissions per topic for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events map[Topic][]any
}

func recordEvents(bus *Bus, topics ...Topic) *eventRecorder {
	r := &eventRecorder{events: make(map[Topic][]any)}
	for _, topic := range topics {
		topic := topic
		bus.Subscribe(topic, func(payload any) {
			r.mu.Lock()
			r.events[topic] = append(r.events[topic], payload)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *eventRecorder) count(topic Topic) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events[topic])
}

func (r *eventRecorder) get(topic Topic) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events[topic]...)
}

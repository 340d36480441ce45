package app

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyahIA/nexus-sub002/internal/config"
	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

const testLocalID = domain.UserID("aaaa-local")

func newTestEngine(t *testing.T) (*Engine, *fakeFactory, *fakeSignaler, *Bus) {
	t.Helper()
	factory := &fakeFactory{}
	signaler := &fakeSignaler{}
	bus := NewBus()
	engine := NewEngine(testLocalID, factory, signaler, bus, config.ReconnectConfig{
		InitialInterval: 20 * time.Millisecond,
		MaxAttempts:     3,
	})
	t.Cleanup(engine.Close)
	return engine, factory, signaler, bus
}

func TestPeerJoinedCreatesSessionAndOffers(t *testing.T) {
	engine, factory, signaler, bus := newTestEngine(t)
	rec := recordEvents(bus, TopicUserJoined)

	engine.HandlePeerJoined("bbbb-remote", "alice")

	require.Equal(t, 1, factory.created())
	conn := factory.conn(0)
	assert.Equal(t, 1, conn.offerCalls)
	assert.False(t, conn.lastICERestart)
	assert.Equal(t, 1, signaler.offerCount())

	require.Equal(t, 1, rec.count(TopicUserJoined))
	ev := rec.get(TopicUserJoined)[0].(UserJoinedEvent)
	assert.Equal(t, domain.UserID("bbbb-remote"), ev.UserID)
	assert.Equal(t, "alice", ev.Username)

	sessions := engine.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "connecting", sessions[0].State)
}

func TestDuplicateJoinKeepsSingleConnection(t *testing.T) {
	engine, factory, _, _ := newTestEngine(t)

	engine.HandlePeerJoined("bbbb-remote", "alice")
	engine.HandlePeerJoined("bbbb-remote", "alice")
	engine.HandlePeerJoined("bbbb-remote", "impostor")

	assert.Equal(t, 1, factory.created())
	sessions := engine.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "alice", sessions[0].Username)
}

func TestJoinRejectsInvalidPeer(t *testing.T) {
	engine, factory, _, _ := newTestEngine(t)

	engine.HandlePeerJoined("", "alice")
	engine.HandlePeerJoined("bbbb-remote", "")

	assert.Zero(t, factory.created())
	assert.Empty(t, engine.Sessions())
}

func TestPeerLeftClosesConnectionAndRemovesSession(t *testing.T) {
	engine, factory, _, bus := newTestEngine(t)
	rec := recordEvents(bus, TopicUserLeft)

	engine.HandlePeerJoined("bbbb-remote", "alice")
	conn := factory.conn(0)

	engine.HandlePeerLeft("bbbb-remote")

	assert.True(t, conn.isClosed())
	assert.Empty(t, engine.Sessions())
	assert.Equal(t, 1, rec.count(TopicUserLeft))

	// a second leave for the same peer is a no-op
	engine.HandlePeerLeft("bbbb-remote")
	assert.Equal(t, 1, rec.count(TopicUserLeft))
}

func TestOfferGlareLowerIDKeepsOwnOffer(t *testing.T) {
	engine, factory, signaler, _ := newTestEngine(t)

	// local "aaaa-local" < remote "bbbb-remote": our offer wins
	engine.HandlePeerJoined("bbbb-remote", "alice")
	require.Equal(t, 1, factory.created())

	engine.HandleOffer("bbbb-remote", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote"})

	assert.Equal(t, 1, factory.created(), "glare must not rebuild the connection")
	assert.Empty(t, signaler.answers)
}

func TestOfferFromHigherPriorityPeerIsAnswered(t *testing.T) {
	engine, factory, signaler, _ := newTestEngine(t)

	// remote "aaaa-aaaaa" sorts below the local ID, so its offer wins the glare
	engine.HandlePeerJoined("aaaa-aaaaa", "bob")
	require.Equal(t, 1, factory.created())
	first := factory.conn(0)

	engine.HandleOffer("aaaa-aaaaa", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote"})

	// answered on a fresh connection, old one closed
	require.Equal(t, 2, factory.created())
	assert.True(t, first.isClosed())
	assert.Equal(t, 1, factory.conn(1).applyOfferCalls)
	require.Len(t, signaler.answers, 1)
	assert.Equal(t, domain.UserID("aaaa-aaaaa"), signaler.answers[0])
}

func TestOfferOnConnectedSessionReusesLiveConnection(t *testing.T) {
	engine, factory, signaler, _ := newTestEngine(t)

	engine.HandlePeerJoined("bbbb-remote", "alice")
	conn := factory.conn(0)
	conn.fireConnectionState(webrtc.PeerConnectionStateConnected)

	engine.HandleOffer("bbbb-remote", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "restart"})

	assert.Equal(t, 1, factory.created(), "remote ICE restart must not rebuild")
	assert.Equal(t, 1, conn.applyOfferCalls)
	require.Len(t, signaler.answers, 1)
}

func TestAnswerAppliedToOutstandingOffer(t *testing.T) {
	engine, factory, _, _ := newTestEngine(t)

	engine.HandlePeerJoined("bbbb-remote", "alice")
	conn := factory.conn(0)

	engine.HandleAnswer("bbbb-remote", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"})
	assert.Equal(t, 1, conn.applyAnswerCalls)

	// answers from unknown peers are dropped
	engine.HandleAnswer("cccc-nobody", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer"})
}

func TestCandidateAppliedToSessionConnection(t *testing.T) {
	engine, factory, _, _ := newTestEngine(t)

	engine.HandlePeerJoined("bbbb-remote", "alice")
	conn := factory.conn(0)

	engine.HandleCandidate("bbbb-remote", webrtc.ICECandidateInit{Candidate: "candidate:1"})
	require.Len(t, conn.candidates, 1)
}

func TestStatusUpdatesNeverTouchUsername(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	engine.HandlePeerJoined("bbbb-remote", "alice")

	engine.HandleMuteStatus("bbbb-remote", true)
	engine.HandleVideoStatus("bbbb-remote", true)
	engine.HandleMuteStatus("bbbb-remote", false)

	sessions := engine.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "alice", sessions[0].Username)
	assert.False(t, sessions[0].Muted)
	assert.True(t, sessions[0].VideoEnabled)
}

func TestLocalCandidatesAreForwarded(t *testing.T) {
	engine, factory, signaler, _ := newTestEngine(t)

	engine.HandlePeerJoined("bbbb-remote", "alice")
	conn := factory.conn(0)

	conn.mu.Lock()
	fn := conn.onCandidate
	conn.mu.Unlock()
	require.NotNil(t, fn)
	fn(webrtc.ICECandidateInit{Candidate: "candidate:1"})

	require.Len(t, signaler.candidates, 1)
	assert.Equal(t, domain.UserID("bbbb-remote"), signaler.candidates[0])
}

func TestRemoteOfferDuringRecoveryCancelsPendingReconnect(t *testing.T) {
	engine, factory, signaler, _ := newTestEngine(t)

	engine.HandlePeerJoined("bbbb-remote", "alice")
	factory.conn(0).fireConnectionState(webrtc.PeerConnectionStateDisconnected)

	// the remote side recovers first and offers; answering it is the recovery
	engine.HandleOffer("bbbb-remote", webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "remote"})
	require.Equal(t, 2, factory.created())
	require.Len(t, signaler.answers, 1)

	// well past the scheduled delay: the armed attempt must not discard the
	// connection we just answered
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 2, factory.created())
}

func TestCloseTearsDownAllSessions(t *testing.T) {
	engine, factory, _, _ := newTestEngine(t)

	engine.HandlePeerJoined("bbbb-remote", "alice")
	engine.HandlePeerJoined("cccc-remote", "bob")
	require.Equal(t, 2, factory.created())

	engine.Close()

	assert.True(t, factory.conn(0).isClosed())
	assert.True(t, factory.conn(1).isClosed())
	assert.Empty(t, engine.Sessions())

	// joins after close are ignored
	engine.HandlePeerJoined("dddd-remote", "carol")
	assert.Equal(t, 2, factory.created())
}

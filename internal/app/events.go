package app

import (
	"github.com/pion/webrtc/v4"

	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

// Topic names the event streams the engine publishes. External consumers
// (UI glue, logging, background-mode signal) subscribe by topic.
type Topic string

const (
	TopicUserJoined                Topic = "user-joined"
	TopicUserLeft                  Topic = "user-left"
	TopicConnectionStateChange     Topic = "connection-state-change"
	TopicTurnFallbackAttempted     Topic = "turn-fallback-attempted"
	TopicReconnecting              Topic = "reconnecting"
	TopicReconnectionFailed        Topic = "reconnection-failed"
	TopicHealthCheckComplete       Topic = "health-check-complete"
	TopicAutomaticRecoveryComplete Topic = "automatic-recovery-complete"
)

type UserJoinedEvent struct {
	UserID   domain.UserID
	Username string
}

type UserLeftEvent struct {
	UserID domain.UserID
}

type ConnectionStateChangeEvent struct {
	UserID domain.UserID
	State  webrtc.PeerConnectionState
}

type TurnFallbackAttemptedEvent struct {
	UserID domain.UserID
}

type ReconnectingEvent struct {
	UserID  domain.UserID
	Attempt int
}

type ReconnectionFailedEvent struct {
	UserID domain.UserID
}

type HealthCheckCompleteEvent struct {
	TotalPeers     int
	HealthyPeers   int
	UnhealthyPeers int
}

type AutomaticRecoveryCompleteEvent struct {
	UnhealthyPeers         int
	TotalRecoverySuccesses int
	TotalRecoveryFailures  int
}

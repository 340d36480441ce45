package app

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/domain"
)

// HealthResult is the verdict for one peer session.
type HealthResult struct {
	UserID  domain.UserID `json:"user_id"`
	Healthy bool          `json:"healthy"`
	Issues  []string      `json:"issues,omitempty"`
}

// HealthMonitor audits every session and funnels unhealthy ones back through
// the engine's recovery path. It keeps no state between invocations beyond
// reading the registry, so it can run periodically or be triggered by
// connection-state events.
type HealthMonitor struct {
	engine     *Engine
	bus        *Bus
	staleAfter time.Duration
}

func NewHealthMonitor(engine *Engine, bus *Bus, staleAfter time.Duration) *HealthMonitor {
	return &HealthMonitor{engine: engine, bus: bus, staleAfter: staleAfter}
}

// PerformHealthCheck classifies every session and emits the aggregate event.
func (m *HealthMonitor) PerformHealthCheck() []HealthResult {
	results := m.engine.inspectHealth(m.staleAfter)

	healthy := 0
	for _, r := range results {
		if r.Healthy {
			healthy++
		}
	}
	m.bus.Publish(TopicHealthCheckComplete, HealthCheckCompleteEvent{
		TotalPeers:     len(results),
		HealthyPeers:   healthy,
		UnhealthyPeers: len(results) - healthy,
	})
	log.Info().Str("module", "app.health").Int("total", len(results)).Int("healthy", healthy).Msg("health check complete")
	return results
}

// PerformAutomaticRecovery schedules recovery for each unhealthy session via
// the engine's reconnection ladder; the 3-attempt ceiling is never bypassed.
func (m *HealthMonitor) PerformAutomaticRecovery(ctx context.Context, results []HealthResult) error {
	var unhealthy, successes, failures int
	for _, r := range results {
		if r.Healthy {
			continue
		}
		unhealthy++
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.engine.RecoverPeer(r.UserID); err != nil {
			failures++
			log.Warn().Err(err).Str("module", "app.health").Str("user_id", string(r.UserID)).Msg("recovery not possible")
			continue
		}
		successes++
	}

	m.bus.Publish(TopicAutomaticRecoveryComplete, AutomaticRecoveryCompleteEvent{
		UnhealthyPeers:         unhealthy,
		TotalRecoverySuccesses: successes,
		TotalRecoveryFailures:  failures,
	})
	log.Info().Str("module", "app.health").Int("unhealthy", unhealthy).Int("recovered", successes).Int("failed", failures).Msg("automatic recovery complete")
	return nil
}

// Run drives periodic checks until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.health").Msg("health monitor stopped")
			return
		case <-ticker.C:
			results := m.PerformHealthCheck()
			if err := m.PerformAutomaticRecovery(ctx, results); err != nil {
				return
			}
		}
	}
}

// inspectHealth examines sessions under the engine lock: lifecycle state,
// expected senders for each locally-enabled media kind, and staleness of the
// last observed state change.
func (e *Engine) inspectHealth(staleAfter time.Duration) []HealthResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	results := make([]HealthResult, 0, e.registry.Len())
	for _, sess := range e.registry.all() {
		var issues []string

		switch sess.state {
		case StateFailed:
			issues = append(issues, "connection failed")
		case StateDisconnected:
			issues = append(issues, "connection disconnected")
		case StateTerminated:
			issues = append(issues, "reconnection exhausted")
		}
		if sess.iceState == webrtc.ICEConnectionStateFailed {
			issues = append(issues, "ice connection failed")
		}

		issues = append(issues, e.senderIssuesLocked(sess)...)

		if sess.state != StateConnected && staleAfter > 0 && time.Since(sess.lastStateChange) > staleAfter {
			issues = append(issues, fmt.Sprintf("no state change for %s", time.Since(sess.lastStateChange).Truncate(time.Second)))
		}

		results = append(results, HealthResult{
			UserID:  sess.UserID,
			Healthy: len(issues) == 0,
			Issues:  issues,
		})
	}
	return results
}

// senderIssuesLocked reports a missing or inactive sender for every locally
// enabled media kind.
func (e *Engine) senderIssuesLocked(sess *PeerSession) []string {
	var issues []string
	for kind, t := range e.localTracks {
		if !t.Enabled() {
			continue
		}
		if sess.conn == nil {
			issues = append(issues, fmt.Sprintf("%s sender missing: no live connection", kind))
			continue
		}
		found := false
		for _, sender := range sess.conn.Senders() {
			if sender.Kind() != kind {
				continue
			}
			found = true
			if cur := sender.Track(); cur == nil || !cur.Enabled() {
				issues = append(issues, fmt.Sprintf("%s sender disabled", kind))
			}
			break
		}
		if !found {
			issues = append(issues, fmt.Sprintf("%s sender missing", kind))
		}
	}
	return issues
}

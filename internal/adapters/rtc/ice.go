// Package rtc adapts pion/webrtc to the core interfaces the engine is
// written against.
package rtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/DannyahIA/nexus-sub002/internal/config"
	"github.com/DannyahIA/nexus-sub002/internal/core"
)

// IceProvider builds ICE server lists from validated configuration. The
// config is checked at startup (config.Validate), so by the time a provider
// exists every TURN entry carries a username and credential.
type IceProvider struct {
	cfg config.ICEConfig
}

func NewIceProvider(cfg config.ICEConfig) *IceProvider {
	return &IceProvider{cfg: cfg}
}

// Servers returns STUN+TURN for normal mode and TURN only for fallback mode.
// turnOnly deliberately strips STUN: a session that wants a relay must not
// keep loophole paths that reproduce the failed direct negotiation.
func (p *IceProvider) Servers(mode core.IceMode) []webrtc.ICEServer {
	turn := webrtc.ICEServer{
		URLs:       p.cfg.TURNURLs,
		Username:   p.cfg.TURNUsername,
		Credential: p.cfg.TURNCredential,
	}
	if mode == core.IceModeTurnOnly {
		return []webrtc.ICEServer{turn}
	}
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(p.cfg.STUNURLs) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: p.cfg.STUNURLs})
	}
	return append(servers, turn)
}

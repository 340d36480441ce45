package rtc

import (
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/DannyahIA/nexus-sub002/internal/core"
)

// Factory creates pion peer connections per ICE mode. One shared API object
// carries the media engine and ICE timeout settings for every connection.
type Factory struct {
	api      *webrtc.API
	provider core.IceConfigProvider
}

func NewFactory(provider core.IceConfigProvider) (*Factory, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetICETimeouts(
		5*time.Second,  // disconnected timeout
		10*time.Second, // failed timeout
		2*time.Second,  // keep-alive interval
	)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(settingEngine),
	)
	return &Factory{api: api, provider: provider}, nil
}

// NewConnection builds a connection for the requested mode. turnOnly also
// sets the relay-only transport policy, so even host/srflx candidates the
// stack could still gather are never paired.
func (f *Factory) NewConnection(mode core.IceMode) (core.MediaConnection, error) {
	cfg := webrtc.Configuration{
		ICEServers:         f.provider.Servers(mode),
		ICETransportPolicy: webrtc.ICETransportPolicyAll,
	}
	if mode == core.IceModeTurnOnly {
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}

	pc, err := f.api.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	log.Debug().Str("module", "adapters.rtc").Str("ice_mode", string(mode)).Msg("peer connection created")
	return newConnection(pc), nil
}

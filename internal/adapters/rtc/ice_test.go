package rtc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyahIA/nexus-sub002/internal/config"
	"github.com/DannyahIA/nexus-sub002/internal/core"
)

func testICEConfig() config.ICEConfig {
	return config.ICEConfig{
		STUNURLs:       []string{"stun:stun.example.com:3478"},
		TURNURLs:       []string{"turn:relay.example.com:3478"},
		TURNUsername:   "user",
		TURNCredential: "secret",
	}
}

func TestServersNormalModeCarriesSTUNAndTURN(t *testing.T) {
	p := NewIceProvider(testICEConfig())

	servers := p.Servers(core.IceModeNormal)
	require.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example.com:3478"}, servers[0].URLs)
	assert.Equal(t, []string{"turn:relay.example.com:3478"}, servers[1].URLs)
	assert.Equal(t, "user", servers[1].Username)
	assert.Equal(t, "secret", servers[1].Credential)
}

func TestServersTurnOnlyModeStripsSTUN(t *testing.T) {
	p := NewIceProvider(testICEConfig())

	servers := p.Servers(core.IceModeTurnOnly)
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"turn:relay.example.com:3478"}, servers[0].URLs)
	assert.Equal(t, "user", servers[0].Username)
	assert.Equal(t, "secret", servers[0].Credential)
}

func TestServersNormalModeWithoutSTUN(t *testing.T) {
	cfg := testICEConfig()
	cfg.STUNURLs = nil
	p := NewIceProvider(cfg)

	servers := p.Servers(core.IceModeNormal)
	require.Len(t, servers, 1)
	assert.Equal(t, []string{"turn:relay.example.com:3478"}, servers[0].URLs)
}

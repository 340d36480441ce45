package rtc

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"github.com/DannyahIA/nexus-sub002/internal/core"
)

// localTrack wraps a pion static RTP track with the enabled flag the engine
// toggles. pion has no per-track enabled state; disabling here just gates
// whether writers should push RTP, so flipping it never touches senders.
type localTrack struct {
	track   *webrtc.TrackLocalStaticRTP
	kind    webrtc.RTPCodecType
	enabled atomic.Bool
}

// NewAudioTrack creates an Opus local track.
func NewAudioTrack(id, streamID string) (core.LocalTrack, error) {
	t, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:    webrtc.MimeTypeOpus,
		ClockRate:   48000,
		Channels:    1,
		SDPFmtpLine: "minptime=10;useinbandfec=1",
	}, id, streamID)
	if err != nil {
		return nil, err
	}
	lt := &localTrack{track: t, kind: webrtc.RTPCodecTypeAudio}
	lt.enabled.Store(true)
	return lt, nil
}

// NewVideoTrack creates a VP8 local track.
func NewVideoTrack(id, streamID string) (core.LocalTrack, error) {
	t, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}, id, streamID)
	if err != nil {
		return nil, err
	}
	lt := &localTrack{track: t, kind: webrtc.RTPCodecTypeVideo}
	lt.enabled.Store(true)
	return lt, nil
}

func (t *localTrack) ID() string                { return t.track.ID() }
func (t *localTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *localTrack) Enabled() bool             { return t.enabled.Load() }
func (t *localTrack) SetEnabled(enabled bool)   { t.enabled.Store(enabled) }

// Unwrap exposes the pion track for AddTrack calls inside this package.
func (t *localTrack) Unwrap() webrtc.TrackLocal { return t.track }

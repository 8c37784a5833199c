package negotiation

import (
	"fmt"

	"github.com/pion/apprtc-direct/pkg/sdpedit"
)

// Config selects codecs and start bitrates applied to every description.
type Config struct {
	VideoEnabled bool `mapstructure:"videoenabled"`
	// VideoCodec is one of VP8, VP9, "H264 Baseline", "H264 High"
	VideoCodec string `mapstructure:"videocodec"`
	// AudioCodec is preferred in both descriptions when set, e.g. opus or ISAC
	AudioCodec string `mapstructure:"audiocodec"`
	// AudioStartBitrate in kbps, 0 leaves the remote description untouched
	AudioStartBitrate int `mapstructure:"audiostartbitrate"`
	// VideoStartBitrate in kbps, 0 leaves the remote description untouched
	VideoStartBitrate int `mapstructure:"videostartbitrate"`
}

// Validate checks the bitrates and the audio codec name.
func (c Config) Validate() error {
	if c.AudioStartBitrate < 0 {
		return fmt.Errorf("audio start bitrate must not be negative: %d", c.AudioStartBitrate)
	}
	if c.VideoStartBitrate < 0 {
		return fmt.Errorf("video start bitrate must not be negative: %d", c.VideoStartBitrate)
	}
	switch c.AudioCodec {
	case "", sdpedit.AudioCodecOpus, sdpedit.AudioCodecISAC:
	default:
		return fmt.Errorf("unsupported audio codec %q", c.AudioCodec)
	}
	return nil
}

package sdpedit

import (
	"github.com/pion/sdp/v3"
)

// Codecs lists the rtpmap entries of every media section as
// "<media>:<payload type> <encoding>", e.g. "audio:111 opus/48000/2".
func Codecs(s string) ([]string, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(s)); err != nil {
		return nil, err
	}
	var codecs []string
	for _, md := range desc.MediaDescriptions {
		for _, a := range md.Attributes {
			if a.Key == "rtpmap" {
				codecs = append(codecs, md.MediaName.Media+":"+a.Value)
			}
		}
	}
	return codecs, nil
}

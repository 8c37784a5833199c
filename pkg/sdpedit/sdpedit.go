// Package sdpedit rewrites SDP text: codec preference order and start bitrate hints.
//
// Every function takes the SDP as a string and returns a new string. Lines are
// split on '\n' and keep their original terminator, so any line that is not
// rewritten round-trips byte for byte.
package sdpedit

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pion/apprtc-direct/pkg/logger"
)

const (
	// VideoCodecVP8 is the SDP name of VP8
	VideoCodecVP8 = "VP8"
	// VideoCodecVP9 is the SDP name of VP9
	VideoCodecVP9 = "VP9"
	// VideoCodecH264 is the SDP name of H264
	VideoCodecH264 = "H264"
	// AudioCodecOpus is the SDP name of opus
	AudioCodecOpus = "opus"
	// AudioCodecISAC is the SDP name of iSAC
	AudioCodecISAC = "ISAC"

	videoStartBitrateParam = "x-google-start-bitrate"
	audioBitrateParam      = "maxaveragebitrate"
	bpsInKbps              = 1000
)

// Logger is used for diagnostics of no-op rewrites.
var Logger logr.Logger = logger.New().WithName("sdpedit")

// VideoCodecName maps a video codec setting to the codec name used in rtpmap
// lines. Unknown settings fall back to VP8.
func VideoCodecName(setting string) string {
	switch setting {
	case VideoCodecVP9:
		return VideoCodecVP9
	case "H264 Baseline", "H264 High", VideoCodecH264:
		return VideoCodecH264
	default:
		return VideoCodecVP8
	}
}

type line struct {
	text string
	eol  string
}

func splitLines(sdp string) []line {
	var lines []line
	for len(sdp) > 0 {
		i := strings.IndexByte(sdp, '\n')
		if i < 0 {
			lines = append(lines, line{text: sdp})
			break
		}
		l := line{text: sdp[:i], eol: "\n"}
		if strings.HasSuffix(l.text, "\r") {
			l.text = l.text[:len(l.text)-1]
			l.eol = "\r\n"
		}
		lines = append(lines, l)
		sdp = sdp[i+1:]
	}
	return lines
}

func joinLines(lines []line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.text)
		b.WriteString(l.eol)
	}
	return b.String()
}

// rtpmapPattern matches a=rtpmap:<payload type> <encoding name>/<clock rate> [/<encoding parameters>]
func rtpmapPattern(codec string) *regexp.Regexp {
	return regexp.MustCompile(`^a=rtpmap:(\d+) ` + regexp.QuoteMeta(codec) + `(/\d+)+$`)
}

func findMediaDescriptionLine(isAudio bool, lines []line) int {
	prefix := "m=video "
	if isAudio {
		prefix = "m=audio "
	}
	for i, l := range lines {
		if strings.HasPrefix(l.text, prefix) {
			return i
		}
	}
	return -1
}

// movePayloadTypesToFront rebuilds "m=<media> <port> <proto> <fmt> ..." with
// preferred first. ok is false when the line has no format list.
func movePayloadTypesToFront(preferred []string, mLine string) (string, bool) {
	parts := strings.Split(mLine, " ")
	if len(parts) <= 3 {
		return "", false
	}
	skip := make(map[string]struct{}, len(preferred))
	for _, pt := range preferred {
		skip[pt] = struct{}{}
	}
	out := make([]string, 0, len(parts)+len(preferred))
	out = append(out, parts[:3]...)
	out = append(out, preferred...)
	for _, pt := range parts[3:] {
		if _, ok := skip[pt]; ok {
			continue
		}
		out = append(out, pt)
	}
	return strings.Join(out, " "), true
}

// PreferCodec moves every payload type mapped to codec to the front of the
// first audio (isAudio) or video media description line. The SDP is returned
// unchanged when there is no such line or no matching rtpmap.
func PreferCodec(sdp, codec string, isAudio bool) string {
	lines := splitLines(sdp)
	mLineIndex := findMediaDescriptionLine(isAudio, lines)
	if mLineIndex == -1 {
		Logger.V(1).Info("No media description line, can't prefer codec", "codec", codec)
		return sdp
	}

	pattern := rtpmapPattern(codec)
	var payloadTypes []string
	for _, l := range lines {
		if m := pattern.FindStringSubmatch(l.text); m != nil {
			payloadTypes = append(payloadTypes, m[1])
		}
	}
	if len(payloadTypes) == 0 {
		Logger.V(1).Info("No payload types for codec", "codec", codec)
		return sdp
	}

	newMLine, ok := movePayloadTypesToFront(payloadTypes, lines[mLineIndex].text)
	if !ok {
		Logger.Error(nil, "Wrong SDP media description format", "line", lines[mLineIndex].text)
		return sdp
	}
	Logger.V(1).Info("Change media description", "from", lines[mLineIndex].text, "to", newMLine)
	lines[mLineIndex].text = newMLine
	return joinLines(lines)
}

// SetStartBitrate adds a start bitrate hint for codec to its fmtp line,
// creating the fmtp line right after the rtpmap line if there is none. Video
// codecs get x-google-start-bitrate in kbps, audio codecs maxaveragebitrate in
// bps. The call is not idempotent: running it twice appends the parameter twice.
func SetStartBitrate(codec string, isVideo bool, sdp string, bitrateKbps int) string {
	lines := splitLines(sdp)

	rtpmapLineIndex := -1
	var payloadType string
	pattern := rtpmapPattern(codec)
	for i, l := range lines {
		if m := pattern.FindStringSubmatch(l.text); m != nil {
			payloadType = m[1]
			rtpmapLineIndex = i
			break
		}
	}
	if rtpmapLineIndex == -1 {
		Logger.V(1).Info("No rtpmap for codec", "codec", codec)
		return sdp
	}

	param := fmt.Sprintf("%s=%d", audioBitrateParam, bitrateKbps*bpsInKbps)
	if isVideo {
		param = fmt.Sprintf("%s=%d", videoStartBitrateParam, bitrateKbps)
	}

	fmtpPattern := regexp.MustCompile(`^a=fmtp:` + payloadType + ` \w+=\d+.*$`)
	for i, l := range lines {
		if fmtpPattern.MatchString(l.text) {
			lines[i].text = l.text + "; " + param
			Logger.V(1).Info("Update SDP line", "line", lines[i].text)
			return joinLines(lines)
		}
	}

	fmtp := line{text: fmt.Sprintf("a=fmtp:%s %s", payloadType, param), eol: lines[rtpmapLineIndex].eol}
	if fmtp.eol == "" {
		lines[rtpmapLineIndex].eol = "\r\n"
	}
	Logger.V(1).Info("Add SDP line", "line", fmtp.text)

	out := make([]line, 0, len(lines)+1)
	out = append(out, lines[:rtpmapLineIndex+1]...)
	out = append(out, fmtp)
	out = append(out, lines[rtpmapLineIndex+1:]...)
	return joinLines(out)
}

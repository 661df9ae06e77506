// Package rewriter implements the stream URL rewriting rules used to
// turn a camera's published RTSP URL into one reachable from inside the
// compose network, and to derive the overlay push URL from the raw pull
// URL.
package rewriter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// RewriteLoopback substitutes host and port when raw's host is a
// loopback address (127.0.0.1 or localhost); otherwise raw is returned
// unchanged. A raw value that fails to parse as a URL is returned
// unchanged.
func RewriteLoopback(raw, internalHost string, internalPort int) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := u.Hostname()
	if host != "127.0.0.1" && host != "localhost" {
		return raw
	}
	u.Host = internalHost + ":" + strconv.Itoa(internalPort)
	return u.String()
}

// OverlayURL derives the overlay push URL from a raw pull URL: split the
// path on the last '/'; if the tail ends in "_raw", replace that suffix
// with "overlay"; otherwise append "_overlay" to the whole URL (plain
// string concatenation, matching the fallback behavior used when the
// URL has no path tail to split on).
func OverlayURL(raw string) string {
	idx := strings.LastIndex(raw, "/")
	if idx < 0 {
		return raw + "_overlay"
	}
	head, tail := raw[:idx+1], raw[idx+1:]
	if strings.HasSuffix(tail, "_raw") {
		return head + strings.TrimSuffix(tail, "_raw") + "overlay"
	}
	return raw + "_overlay"
}

// BuildRTSPURL returns rtspURL unchanged if it is a usable rtsp:// URL
// that does not point at a loopback host; otherwise it constructs one
// from streamHost/streamPort/streamID. Used by the recorder, which
// trusts a camera's declared rtspUrl only when it isn't a host-local
// placeholder.
func BuildRTSPURL(streamHost string, streamPort int, streamID, rtspURL string) string {
	if strings.HasPrefix(rtspURL, "rtsp://") &&
		!strings.Contains(rtspURL, "127.0.0.1") &&
		!strings.Contains(rtspURL, "localhost") {
		return rtspURL
	}
	return fmt.Sprintf("rtsp://%s:%d/%s", streamHost, streamPort, streamID)
}

package rewriter

import "testing"

func TestRewriteLoopback(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"127.0.0.1 rewritten", "rtsp://127.0.0.1:8554/cam1", "rtsp://go2rtc:8554/cam1"},
		{"localhost rewritten", "rtsp://localhost:8554/cam1", "rtsp://go2rtc:8554/cam1"},
		{"remote host unchanged", "rtsp://192.168.1.5:554/cam1", "rtsp://192.168.1.5:554/cam1"},
		{"unparseable returned unchanged", "not a url %%", "not a url %%"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RewriteLoopback(tc.in, "go2rtc", 8554); got != tc.want {
				t.Errorf("RewriteLoopback(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestOverlayURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"raw suffix replaced", "rtsp://host/live/cam1_raw", "rtsp://host/live/cam1overlay"},
		{"no raw suffix appends", "rtsp://host/live/cam1", "rtsp://host/live/cam1_overlay"},
		{"no path tail falls back to concat", "rtsphost", "rtsphost_overlay"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OverlayURL(tc.in); got != tc.want {
				t.Errorf("OverlayURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestBuildRTSPURL(t *testing.T) {
	cases := []struct {
		name string
		rtsp string
		want string
	}{
		{"usable remote url kept as-is", "rtsp://192.168.1.5:554/cam1", "rtsp://192.168.1.5:554/cam1"},
		{"loopback url replaced", "rtsp://127.0.0.1:8554/cam1", "rtsp://go2rtc:8554/cam1"},
		{"empty url replaced", "", "rtsp://go2rtc:8554/cam1"},
		{"non-rtsp scheme replaced", "http://host/cam1", "rtsp://go2rtc:8554/cam1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildRTSPURL("go2rtc", 8554, "cam1", tc.rtsp); got != tc.want {
				t.Errorf("BuildRTSPURL(...) = %q, want %q", got, tc.want)
			}
		})
	}
}

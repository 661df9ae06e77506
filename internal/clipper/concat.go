package clipper

import (
	"fmt"
	"os"
)

// writeConcatManifest writes ffmpeg's concat-demuxer manifest format:
// one `file '<path>'` line per segment, in chronological order.
func writeConcatManifest(path string, segmentPaths []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, p := range segmentPaths {
		if _, err := fmt.Fprintf(f, "file '%s'\n", p); err != nil {
			return err
		}
	}
	return nil
}

// concatEncodeArgs builds the single ffmpeg pass shared by both clip
// paths: concat-demux the manifest, seek to offset, cut to duration,
// re-encode H.264 CRF 23 veryfast, MP4 with +faststart.
func concatEncodeArgs(manifestPath string, offsetSeconds, durationSeconds float64, outputTmp string) []string {
	return []string{
		"-hide_banner", "-loglevel", "warning", "-y",
		"-fflags", "+genpts+discardcorrupt",
		"-err_detect", "ignore_err",
		"-f", "concat", "-safe", "0",
		"-i", manifestPath,
		"-ss", fmt.Sprintf("%f", offsetSeconds),
		"-t", fmt.Sprintf("%f", durationSeconds),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-an",
		"-movflags", "+faststart",
		"-f", "mp4",
		outputTmp,
	}
}

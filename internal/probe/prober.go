package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoBitRate is returned by [Prober.AudioBitRate] when no source could
// determine the audio bit rate.
var ErrNoBitRate = errors.New("audio bit rate not reported")

// Prober runs ffprobe against media files.
type Prober struct {
	// Bin is the ffprobe executable; "ffprobe" when empty.
	Bin string
}

// Probe runs a single ffprobe JSON call against path and returns the
// parsed result. The path is passed as one argv element behind the "file:"
// protocol prefix, so no shell quoting is involved and names beginning with
// "-" or containing ":" are not misread.
func (p Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		InputURL(path),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("ffprobe %q: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("ffprobe %q: %w", path, err)
	}

	return ParseJSON(out)
}

// AudioBitRate returns the audio bit rate of path in bits/sec. For FLAC
// files without a reported rate it falls back to the STREAMINFO estimate.
func (p Prober) AudioBitRate(ctx context.Context, path string) (int64, error) {
	pr, probeErr := p.Probe(ctx, path)
	if probeErr == nil {
		if br := pr.AudioBitRate(); br > 0 {
			return br, nil
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".flac") {
		if br, err := FLACBitRate(path); err == nil {
			return br, nil
		}
	}

	if probeErr != nil {
		return 0, probeErr
	}
	return 0, fmt.Errorf("ffprobe %q: %w", path, ErrNoBitRate)
}

// InputURL returns path as an ffmpeg/ffprobe "file:" URL.
func InputURL(path string) string {
	return "file:" + path
}

// ParseJSON converts raw ffprobe JSON output into a ProbeResult.
// Exported for testing without a real ffprobe binary.
func ParseJSON(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe JSON: %w", err)
	}
	return buildResult(&raw), nil
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string            `json:"filename"`
	FormatName string            `json:"format_name"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeStream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecType     string            `json:"codec_type"`
	BitRate       string            `json:"bit_rate"`
	Channels      int               `json:"channels"`
	ChannelLayout string            `json:"channel_layout"`
	SampleRate    string            `json:"sample_rate"`
	Disposition   map[string]int    `json:"disposition"`
	Tags          map[string]string `json:"tags"`
}

// --- Conversion from wire types to domain types ---

func buildResult(raw *ffprobeOutput) *ProbeResult {
	pr := &ProbeResult{
		Format: FormatInfo{
			Filename:   raw.Format.Filename,
			FormatName: raw.Format.FormatName,
			Duration:   parseFloat(raw.Format.Duration),
			Size:       parseInt64(raw.Format.Size),
			BitRate:    parseInt64(raw.Format.BitRate),
			Tags:       raw.Format.Tags,
		},
	}

	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if pr.PrimaryVideo == nil {
				pr.PrimaryVideo = &VideoStream{
					Index:         s.Index,
					Codec:         s.CodecName,
					BitRate:       streamBitRate(s),
					IsAttachedPic: s.Disposition["attached_pic"] == 1,
				}
			}
		case "audio":
			pr.AudioStreams = append(pr.AudioStreams, AudioStream{
				Index:         s.Index,
				Codec:         s.CodecName,
				Channels:      s.Channels,
				ChannelLayout: s.ChannelLayout,
				SampleRate:    parseInt(s.SampleRate),
				BitRate:       streamBitRate(s),
				Language:      s.Tags["language"],
			})
		}
	}
	return pr
}

// streamBitRate prefers the stream's bit_rate field and falls back to the
// Matroska statistics tag BPS, which mkvmerge writes instead.
func streamBitRate(s *ffprobeStream) int64 {
	if br := parseInt64(s.BitRate); br > 0 {
		return br
	}
	return parseInt64(s.Tags["BPS"])
}

// --- Numeric parsing helpers (ffprobe returns numbers as strings) ---

func parseInt64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

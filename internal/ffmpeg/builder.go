package ffmpeg

import (
	"fmt"
	"strconv"

	"github.com/backmassage/bitshrink/internal/config"
	"github.com/backmassage/bitshrink/internal/probe"
)

// Codec pairs the ffmpeg audio encoder and muxer used for an output
// extension. Lossless codecs take no -b:a target.
type Codec struct {
	Encoder  string
	Muxer    string
	Lossless bool
}

var codecs = map[string]Codec{
	"mp3":  {Encoder: "libmp3lame", Muxer: "mp3"},
	"aac":  {Encoder: "aac", Muxer: "adts"},
	"m4a":  {Encoder: "aac", Muxer: "ipod"},
	"ac3":  {Encoder: "ac3", Muxer: "ac3"},
	"mp2":  {Encoder: "mp2", Muxer: "mp2"},
	"wma":  {Encoder: "wmav2", Muxer: "asf"},
	"mka":  {Encoder: "aac", Muxer: "matroska"},
	"ogg":  {Encoder: "libvorbis", Muxer: "ogg"},
	"oga":  {Encoder: "libvorbis", Muxer: "ogg"},
	"wav":  {Encoder: "pcm_s16le", Muxer: "wav", Lossless: true},
	"flac": {Encoder: "flac", Muxer: "flac", Lossless: true},
}

// CodecFor returns the codec used for output extension ext (no dot).
func CodecFor(ext string) (Codec, bool) {
	c, ok := codecs[config.NormalizeExt(ext)]
	return c, ok
}

// Options are the encode settings shared by every job in a run.
type Options struct {
	Bin        string // ffmpeg executable; "ffmpeg" when empty
	SampleRate int
	Channels   int
}

// OptionsFromConfig extracts encode settings from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Bin:        cfg.FFmpegBin,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}
}

// Job is a single re-encode: Input is read, Output is written in the
// format of OutputExt at no more than BitrateKbps.
type Job struct {
	Input       string
	Output      string
	OutputExt   string
	BitrateKbps int
}

// Build constructs the complete ffmpeg argument slice (binary first) for
// job. The muxer is forced with -f because Output is usually a temporary
// name. Metadata tags are copied and any cover-art video stream is dropped.
func Build(opts Options, job Job) ([]string, error) {
	codec, ok := CodecFor(job.OutputExt)
	if !ok {
		return nil, fmt.Errorf("no encoder for output extension %q", job.OutputExt)
	}

	bin := opts.Bin
	if bin == "" {
		bin = "ffmpeg"
	}

	args := make([]string, 0, 24)
	args = append(args, bin, "-hide_banner", "-nostdin", "-loglevel", "error", "-y")
	args = append(args, "-i", probe.InputURL(job.Input))
	args = append(args, "-vn", "-map_metadata", "0", "-c:a", codec.Encoder)

	if !codec.Lossless && job.BitrateKbps > 0 {
		args = append(args, "-b:a", strconv.Itoa(job.BitrateKbps)+"k")
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(opts.Channels))
	}

	args = append(args, "-f", codec.Muxer, probe.InputURL(job.Output))
	return args, nil
}

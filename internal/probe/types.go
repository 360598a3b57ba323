package probe

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64
	Size       int64
	BitRate    int64
	Tags       map[string]string
}

// VideoStream holds the parsed properties of a video stream (usually
// embedded cover art in audio files).
type VideoStream struct {
	Index         int
	Codec         string
	BitRate       int64
	IsAttachedPic bool
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index         int
	Codec         string
	Channels      int
	ChannelLayout string
	SampleRate    int
	BitRate       int64
	Language      string
}

// ProbeResult is the fully parsed output of a single ffprobe JSON call.
// PrimaryVideo is the first video stream (nil if none), attached pictures
// included: their bit rate is part of the container total.
type ProbeResult struct {
	Format       FormatInfo
	PrimaryVideo *VideoStream
	AudioStreams []AudioStream
}

// AudioBitRate returns the first audio stream's bit rate in bits/sec. When
// the stream does not report one, it is derived from the container total
// minus the video stream's bit rate. Returns 0 when neither is known.
func (p *ProbeResult) AudioBitRate() int64 {
	if len(p.AudioStreams) == 0 {
		return 0
	}
	if br := p.AudioStreams[0].BitRate; br > 0 {
		return br
	}
	if p.Format.BitRate <= 0 {
		return 0
	}
	if p.PrimaryVideo == nil {
		return p.Format.BitRate
	}
	if p.PrimaryVideo.BitRate <= 0 || p.PrimaryVideo.BitRate >= p.Format.BitRate {
		return 0
	}
	return p.Format.BitRate - p.PrimaryVideo.BitRate
}

// AudioCodec returns the codec of the first audio stream, or "".
func (p *ProbeResult) AudioCodec() string {
	if len(p.AudioStreams) == 0 {
		return ""
	}
	return p.AudioStreams[0].Codec
}

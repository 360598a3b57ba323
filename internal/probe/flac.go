package probe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	flac "github.com/go-flac/go-flac"
)

// FLACBitRate estimates the average bit rate of a FLAC file in bits/sec
// from its STREAMINFO block: file size over duration. Used when ffprobe
// does not report a stream or container bit rate.
func FLACBitRate(path string) (int64, error) {
	fh, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer fh.Close()

	fi, err := fh.Stat()
	if err != nil {
		return 0, err
	}

	info, err := readStreamInfo(bufio.NewReader(fh))
	if err != nil {
		return 0, fmt.Errorf("%q: %w", path, err)
	}
	return estimateBitRate(fi.Size(), info.SampleCount, info.SampleRate)
}

// readStreamInfo consumes the metadata blocks only; the audio frames are
// never read.
func readStreamInfo(r io.Reader) (*flac.StreamInfoBlock, error) {
	f, err := flac.ParseMetadata(r)
	if err != nil {
		return nil, fmt.Errorf("parse FLAC metadata: %w", err)
	}
	info, err := f.GetStreamInfo()
	if err != nil {
		return nil, fmt.Errorf("read STREAMINFO: %w", err)
	}
	return info, nil
}

func estimateBitRate(size, samples int64, sampleRate int) (int64, error) {
	if samples <= 0 || sampleRate <= 0 {
		return 0, errors.New("STREAMINFO has no duration")
	}
	return size * 8 * int64(sampleRate) / samples, nil
}

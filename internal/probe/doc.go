// Package probe provides ffprobe-based media inspection and typed result
// structures. A single JSON call per file yields the audio bit rate used to
// decide whether a same-format file needs re-encoding.
//
// Bit rate resolution order:
//   - bit_rate of the first audio stream
//   - format bit_rate minus the video (cover art) stream bit_rate
//   - for FLAC, file size over the STREAMINFO duration (flac.go)
package probe

// Package ffmpeg builds and executes the ffmpeg command that re-encodes one
// audio file.
//
//   - builder.go: output extension → encoder/muxer table and argv assembly
//   - executor.go: Encoder, which runs ffmpeg and captures its output
//   - errors.go: EncodeError and stderr classification
//
// Output always goes to a caller-chosen path; placing and renaming the
// result belongs to the pipeline.
package ffmpeg

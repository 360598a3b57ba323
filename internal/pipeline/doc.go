// Package pipeline scans input paths, classifies every file, and converts
// the selected ones on a fixed-size worker pool.
//
// Data flows one way:
//
//	Scan → planner.Classify → Task channel → Pool workers → Converter → Stats
//
// Files:
//   - discover.go: lazy depth-first scanner (files before subdirectories)
//   - convert.go: single-file conversion through a temp file and rename
//   - pool.go: worker count and the errgroup-backed worker loop
//   - stats.go: mutex-guarded counters and derived totals
//   - report.go: end-of-run statistics block
//   - runner.go: Runner, the single producer that ties the stages together
package pipeline

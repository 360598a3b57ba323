// Package planner classifies candidate paths: not audio, already in the
// right format and under the bit-rate ceiling, needing conversion (with the
// reason), or unprobeable.
package planner

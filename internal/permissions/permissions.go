// Package permissions checks OS-level microphone authorization.
package permissions

// Microphone checks whether the process may capture audio.
type Microphone struct{}

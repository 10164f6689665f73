//go:build !darwin

package permissions

// MicrophoneAuthorized always grants access: only macOS gates microphone
// capture behind a per-app permission.
func (Microphone) MicrophoneAuthorized() (bool, error) {
	return true, nil
}

// EnsurePermissions is a no-op on non-macOS platforms.
func EnsurePermissions() error {
	return nil
}

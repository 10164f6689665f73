//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import "fmt"

const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() (int, error) {
	status := int(C.checkMicrophonePermission())
	return status, nil
}

// RequestMicrophone triggers the system microphone permission dialog
func RequestMicrophone() error {
	C.requestMicrophonePermission()
	return nil
}

// MicrophoneAuthorized reports whether AVFoundation has granted audio capture.
func (Microphone) MicrophoneAuthorized() (bool, error) {
	status, err := CheckMicrophone()
	if err != nil {
		return false, err
	}
	return status == PermissionAuthorized, nil
}

// EnsurePermissions checks the microphone permission and, if it has not been
// granted, triggers the system dialog and fails.
func EnsurePermissions() error {
	micStatus, _ := CheckMicrophone()
	if micStatus != PermissionAuthorized {
		fmt.Println("⚠️  Microphone permission required")
		fmt.Println("   Go to: System Settings → Privacy & Security → Microphone")
		RequestMicrophone()
		return fmt.Errorf("microphone permission not granted")
	}
	return nil
}

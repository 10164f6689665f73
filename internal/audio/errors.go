package audio

import "errors"

// ErrConfig indicates a capture configuration that can never work, such as
// a buffer at or below the device minimum.
var ErrConfig = errors.New("invalid capture config")

// ErrDeviceUnsupported indicates the device rejected the rate, channel or
// encoding combination.
var ErrDeviceUnsupported = errors.New("device does not support format")

// ErrDeviceInitFailed indicates the device accepted the request but is not
// capturing.
var ErrDeviceInitFailed = errors.New("device failed to start")

// ErrDeviceRead indicates an I/O failure during a blocking read.
var ErrDeviceRead = errors.New("device read failed")

// ErrInvalidState indicates an operation outside its lifecycle state.
var ErrInvalidState = errors.New("invalid session state")

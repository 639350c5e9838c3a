// Package adb implements the device gateway on top of the adb command line tool.
package adb

// DeviceState is the connection state reported by `adb get-state`.
type DeviceState string

const (
	StateDevice       DeviceState = "device"
	StateOffline      DeviceState = "offline"
	StateUnauthorized DeviceState = "unauthorized"
	StateBootloader   DeviceState = "bootloader"
	StateUnknown      DeviceState = "unknown"
)

// Device describes the connected device.
type Device struct {
	Serial         string
	State          DeviceState
	Model          string
	Manufacturer   string
	AndroidVersion string
	SDK            string
}

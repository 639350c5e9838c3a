package adb

import (
	"context"
	"fmt"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// Ping checks that exactly one usable device is connected.
func (c *Client) Ping(ctx context.Context) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state != StateDevice {
		return fmt.Errorf("%w: device state is %s", inventory.ErrGatewayUnavailable, state)
	}
	return nil
}

// State returns the connection state of the device.
func (c *Client) State(ctx context.Context) (DeviceState, error) {
	out, err := c.adb(ctx, "get-state")
	if err != nil {
		return StateUnknown, err
	}
	switch s := DeviceState(out); s {
	case StateDevice, StateOffline, StateUnauthorized, StateBootloader:
		return s, nil
	}
	return StateUnknown, nil
}

// DeviceInfo reads identification properties of the connected device.
func (c *Client) DeviceInfo(ctx context.Context) (*Device, error) {
	state, err := c.State(ctx)
	if err != nil {
		return nil, err
	}

	dev := &Device{Serial: c.Serial, State: state}
	props := []struct {
		key string
		dst *string
	}{
		{"ro.product.model", &dev.Model},
		{"ro.product.manufacturer", &dev.Manufacturer},
		{"ro.build.version.release", &dev.AndroidVersion},
		{"ro.build.version.sdk", &dev.SDK},
	}
	for _, p := range props {
		v, err := c.shell(ctx, "getprop", p.key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p.key, err)
		}
		*p.dst = v
	}

	if dev.Serial == "" {
		if serial, err := c.adb(ctx, "get-serialno"); err == nil {
			dev.Serial = serial
		}
	}
	return dev, nil
}

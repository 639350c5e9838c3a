package adb

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// unavailableMarkers are adb messages meaning the device cannot be reached.
var unavailableMarkers = []string{
	"no devices/emulators found",
	"device offline",
	"unauthorized",
	"device not found",
	"more than one device/emulator",
	"cannot connect to daemon",
}

// Client talks to one device through adb.
type Client struct {
	ADBPath string
	Serial  string // empty selects the only connected device
	User    int    // Android user the packages are removed for

	run    Runner
	logger zerolog.Logger
}

// New creates a Client that shells out to adbPath.
func New(adbPath, serial string, user int, logger zerolog.Logger) *Client {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &Client{
		ADBPath: adbPath,
		Serial:  serial,
		User:    user,
		run:     execRunner,
		logger:  logger,
	}
}

// WithRunner replaces the command runner. Used by tests.
func (c *Client) WithRunner(r Runner) *Client {
	c.run = r
	return c
}

// shell runs `adb [-s serial] shell <args>` and returns trimmed output.
func (c *Client) shell(ctx context.Context, args ...string) (string, error) {
	return c.adb(ctx, append([]string{"shell"}, args...)...)
}

func (c *Client) adb(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+2)
	if c.Serial != "" {
		full = append(full, "-s", c.Serial)
	}
	full = append(full, args...)

	c.logger.Trace().Strs("args", full).Msg("adb")

	out, err := c.run(ctx, c.ADBPath, full...)
	text := strings.TrimSpace(string(out))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return text, fmt.Errorf("adb %s interrupted: %w", strings.Join(full, " "), ctxErr)
		}
		return text, classify(err, text, full)
	}
	return text, nil
}

// classify turns a failed invocation into an error, wrapping
// inventory.ErrGatewayUnavailable when the device or adb itself is missing.
func classify(err error, output string, args []string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: adb not found: %v", inventory.ErrGatewayUnavailable, err)
	}
	lower := strings.ToLower(output)
	for _, marker := range unavailableMarkers {
		if strings.Contains(lower, marker) {
			return fmt.Errorf("%w: %s", inventory.ErrGatewayUnavailable, output)
		}
	}
	if output == "" {
		return fmt.Errorf("adb %s failed: %w", strings.Join(args, " "), err)
	}
	return fmt.Errorf("adb %s failed: %w (output: %s)", strings.Join(args, " "), err, output)
}

func (c *Client) userArg() string {
	return strconv.Itoa(c.User)
}

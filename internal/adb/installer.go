package adb

import (
	"context"
	"fmt"
	"strings"
)

// Remove uninstalls a package for the configured user, keeping its data so
// it can be restored later.
func (c *Client) Remove(ctx context.Context, name string) error {
	out, err := c.shell(ctx, "pm", "uninstall", "-k", "--user", c.userArg(), name)
	if err != nil {
		return err
	}
	if err := checkFailure(out); err != nil {
		return fmt.Errorf("pm uninstall %s: %w", name, err)
	}
	return nil
}

// Restore reinstalls a package that is still present on the system image.
func (c *Client) Restore(ctx context.Context, name string) error {
	out, err := c.shell(ctx, "cmd", "package", "install-existing", "--user", c.userArg(), name)
	if err != nil {
		return err
	}
	if err := checkFailure(out); err != nil {
		return fmt.Errorf("install-existing %s: %w", name, err)
	}
	return nil
}

// checkFailure detects failures that pm reports on stdout with a zero exit
// status, e.g. "Failure [not installed for 0]".
func checkFailure(out string) error {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Failure") || strings.HasPrefix(line, "Error:") {
			return fmt.Errorf("%s", line)
		}
		if strings.Contains(line, "doesn't exist") {
			return fmt.Errorf("%s", line)
		}
	}
	return nil
}

package adb

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

const packagePrefix = "package:"

// ListAllPackages returns every system package known to the device,
// including packages uninstalled for the current user.
func (c *Client) ListAllPackages(ctx context.Context) ([]string, error) {
	out, err := c.shell(ctx, "pm", "list", "packages", "-s", "-u")
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	return parsePackageList(out), nil
}

// ListInstalledPackages returns the system packages currently installed.
func (c *Client) ListInstalledPackages(ctx context.Context) (map[string]struct{}, error) {
	out, err := c.shell(ctx, "pm", "list", "packages", "-s")
	if err != nil {
		return nil, fmt.Errorf("failed to list installed packages: %w", err)
	}

	names := parsePackageList(out)
	installed := make(map[string]struct{}, len(names))
	for _, name := range names {
		installed[name] = struct{}{}
	}
	return installed, nil
}

// parsePackageList extracts names from `pm list packages` output. Lines
// without the package: prefix (warnings, blank lines) are ignored.
func parsePackageList(out string) []string {
	var names []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, packagePrefix) {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(line, packagePrefix))
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

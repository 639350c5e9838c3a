package adb

import "context"

// CheckStaleness compares known package names against the current device
// package list and returns how many device packages are missing from known.
// It returns (0, nil) when the device cannot be queried; callers must not
// treat an unreachable device as an error here.
func (c *Client) CheckStaleness(ctx context.Context, known []string) (int, error) {
	names, err := c.ListAllPackages(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("staleness check skipped")
		return 0, nil
	}

	set := make(map[string]struct{}, len(known))
	for _, name := range known {
		set[name] = struct{}{}
	}

	newCount := 0
	for _, name := range names {
		if _, found := set[name]; !found {
			newCount++
		}
	}
	return newCount, nil
}

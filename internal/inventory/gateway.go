package inventory

import "context"

// Gateway is the device side of the inventory: it enumerates packages and
// performs remove/restore for a single package.
type Gateway interface {
	// ListAllPackages returns every package known to the device, installed or not.
	ListAllPackages(ctx context.Context) ([]string, error)
	// ListInstalledPackages returns the subset currently installed.
	ListInstalledPackages(ctx context.Context) (map[string]struct{}, error)
	Remove(ctx context.Context, name string) error
	Restore(ctx context.Context, name string) error
}

// Pinger is implemented by gateways that can check reachability up front.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Classifier looks up catalog data for a package name.
type Classifier interface {
	Lookup(name string) (Classification, bool)
}

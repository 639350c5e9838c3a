package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/blackwell-systems/droidprune/internal/inventory"
)

const testCatalog = `[
  {"id": "com.facebook.appmanager", "list": "Misc", "description": "Facebook app manager", "neededBy": ["com.facebook.katana"], "removal": "Recommended"},
  {"id": "com.facebook.services", "list": "Misc", "description": "Facebook services", "removal": "Recommended"},
  {"id": "com.facebook.katana", "list": "Misc", "description": "Facebook", "removal": "Advanced"},
  {"id": "com.google.android.youtube", "list": "Google", "description": "YouTube", "removal": "Safe"},
  {"id": "com.samsung.android.bixby.agent", "list": "Oem", "description": "Bixby voice assistant", "removal": "Advanced"},
  {"id": "com.android.systemui", "list": "Aosp", "description": "System UI", "removal": "Unsafe"}
]`

// fakeDevice scripts the adb command line for one device.
type fakeDevice struct {
	mu        sync.Mutex
	state     string
	all       []string
	installed map[string]bool
	failures  map[string]string // package -> pm output
	calls     []string
}

func newFakeDevice() *fakeDevice {
	d := &fakeDevice{
		state: "device",
		all: []string{
			"com.android.chrome",
			"com.android.systemui",
			"com.facebook.appmanager",
			"com.facebook.katana",
			"com.facebook.services",
			"com.google.android.youtube",
			"com.samsung.android.bixby.agent",
		},
		installed: map[string]bool{},
		failures:  map[string]string{},
	}
	for _, name := range d.all {
		d.installed[name] = true
	}
	d.installed["com.google.android.youtube"] = false
	return d
}

func (d *fakeDevice) isInstalled(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.installed[name]
}

func (d *fakeDevice) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cmd := strings.Join(args, " ")
	d.calls = append(d.calls, cmd)

	switch {
	case cmd == "get-state":
		return []byte(d.state), nil
	case cmd == "get-serialno":
		return []byte("FAKE0001"), nil
	case cmd == "shell getprop ro.product.model":
		return []byte("Pixel 7"), nil
	case cmd == "shell getprop ro.product.manufacturer":
		return []byte("Google"), nil
	case cmd == "shell getprop ro.build.version.release":
		return []byte("14"), nil
	case cmd == "shell getprop ro.build.version.sdk":
		return []byte("34"), nil
	case cmd == "shell pm list packages -s -u":
		return []byte(d.packageList(false)), nil
	case cmd == "shell pm list packages -s":
		return []byte(d.packageList(true)), nil
	case strings.HasPrefix(cmd, "shell pm uninstall -k --user 0 "):
		pkg := strings.TrimPrefix(cmd, "shell pm uninstall -k --user 0 ")
		if out, ok := d.failures[pkg]; ok {
			return []byte(out), nil
		}
		d.installed[pkg] = false
		return []byte("Success"), nil
	case strings.HasPrefix(cmd, "shell cmd package install-existing --user 0 "):
		pkg := strings.TrimPrefix(cmd, "shell cmd package install-existing --user 0 ")
		if out, ok := d.failures[pkg]; ok {
			return []byte(out), nil
		}
		d.installed[pkg] = true
		return []byte(fmt.Sprintf("Package %s installed for user: 0", pkg)), nil
	}
	return nil, fmt.Errorf("unexpected command: %s %s", name, cmd)
}

func (d *fakeDevice) packageList(installedOnly bool) string {
	names := append([]string(nil), d.all...)
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		if installedOnly && !d.installed[name] {
			continue
		}
		sb.WriteString("package:" + name + "\n")
	}
	return sb.String()
}

// setupApp points every command at a temp home, a test catalog and the fake
// device. Global flag values are restored when the test ends.
func setupApp(t *testing.T) *fakeDevice {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")

	catalogPath := filepath.Join(home, "uad_lists.json")
	if err := os.WriteFile(catalogPath, []byte(testCatalog), 0644); err != nil {
		t.Fatal(err)
	}

	dev := newFakeDevice()
	adbRunner = dev.run
	logOutput = io.Discard
	catalogFlag = catalogPath
	dbPath = filepath.Join(home, "droidprune.db")

	t.Cleanup(resetGlobals)
	return dev
}

func resetGlobals() {
	adbRunner = nil
	logOutput = os.Stderr

	configPath, dbPath, serialFlag, catalogFlag, adbFlag = "", "", "", "", ""
	userFlag = 0
	userOverride.Changed = false
	verbose = false

	def := inventory.DefaultCriteria()
	defaults := criteriaFlags{status: def.Status, list: def.Category, tier: def.Tier}
	listFilters, applyFilters = defaults, defaults
	listFlagCached, showFlagCached = false, false

	applyFlagAll, applyFlagDryRun, applyFlagYes, applyFlagNoSnapshot = false, false, false, false
	applyFlagMode = string(inventory.ModeAuto)
	rowFlagYes, rowFlagNoSnapshot = false, false

	scanFlagQuiet, statusFlagOffline = false, false
	undoFlagList, undoFlagYes = false, false
	historyFlagLimit, historyFlagBatch = 20, ""
	sessionFlagNoWatch, sessionFlagNoSnapshot = false, false
	configForce = false
}

// runApp executes the root command with args and returns everything
// written to stdout and stderr.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetIn(strings.NewReader(stdin))
	if args == nil {
		args = []string{}
	}
	RootCmd.SetArgs(args)
	defer RootCmd.SetArgs(nil)

	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// Package watcher reports changes to the classification catalog file.
//
// The parent directory is watched rather than the file itself, so a list
// replaced by an editor or a download tool (write to a temporary file, then
// rename) is still seen. Bursts of events are debounced into a single
// notification on Changes().
//
// Example usage:
//
//	w, err := watcher.New(cfg.Catalog, logger)
//	if err != nil {
//		return err
//	}
//	if err := w.Start(); err != nil {
//		return err
//	}
//	defer w.Stop()
//
//	for range w.Changes() {
//		cat.Reload()
//	}
package watcher

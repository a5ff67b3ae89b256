package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// maxLogFiles is how many timestamped log files to keep per directory.
const maxLogFiles = 5

// SetupLogFile creates a new timestamped log file under dir and prunes the
// oldest files beyond maxLogFiles. The caller owns the returned handle.
func SetupLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := filepath.Join(dir, fmt.Sprintf("reverie-%s.log",
		time.Now().Format("2006-01-02T15-04-05")))

	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	// Pruning failure never blocks startup; logging still works.
	if err := pruneOldLogs(dir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to prune old logs: %v\n", err)
	}

	return f, nil
}

// pruneOldLogs removes the oldest log files when the count exceeds
// maxLogFiles. The timestamped names sort chronologically.
func pruneOldLogs(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "reverie-*.log"))
	if err != nil {
		return err
	}
	if len(files) <= maxLogFiles {
		return nil
	}

	sort.Strings(files)

	for _, old := range files[:len(files)-maxLogFiles] {
		if err := os.Remove(old); err != nil {
			return fmt.Errorf("remove %s: %w", old, err)
		}
	}

	return nil
}

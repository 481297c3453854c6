// Package procscan enumerates /proc to find and terminate orphaned worker
// and rotator processes left behind by a previous crash, grounded on
// pkg/container's /proc-reading idiom rather than shelling out to ps.
package procscan

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// KillStrays sends SIGTERM to every running process (other than the
// caller) whose /proc/<pid>/cmdline contains one of patterns. Errors
// reading or signalling any single process are ignored — a process that
// exits mid-scan, or one owned by another user, is not a scan failure.
func KillStrays(patterns []string) (killed []int, err error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	self := os.Getpid()
	for _, entry := range entries {
		pid, convErr := strconv.Atoi(entry.Name())
		if convErr != nil || pid == self {
			continue
		}

		cmdline, readErr := os.ReadFile(filepath.Join("/proc", entry.Name(), "cmdline"))
		if readErr != nil {
			continue
		}
		cmd := string(cmdline)

		for _, pattern := range patterns {
			if pattern == "" || !strings.Contains(cmd, pattern) {
				continue
			}
			if sigErr := syscall.Kill(pid, syscall.SIGTERM); sigErr == nil {
				killed = append(killed, pid)
			}
			break
		}
	}
	return killed, nil
}

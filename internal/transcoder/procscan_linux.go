//go:build linux

package transcoder

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// resolvePID disambiguates the encoder's true PID when it may have been
// launched through an intermediate shell. exec.CommandContext with an
// argument vector already avoids the shell in the common case, so
// spawnedPID is almost always correct; this scan only matters for a
// defensive fallback (e.g. a test double wrapped in a shell script) and
// selects a live process named execName that is spawnedPID, spawnedPID+1,
// or spawnedPID+2.
func resolvePID(spawnedPID int, execName string) int {
	candidates := []int{spawnedPID, spawnedPID + 1, spawnedPID + 2}
	for _, pid := range candidates {
		if processCommName(pid) == filepath.Base(execName) {
			return pid
		}
	}
	return spawnedPID
}

func processCommName(pid int) string {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ListRunning returns the PIDs of all live processes whose command name
// matches execName, used by the supervisor to enforce the process-count
// invariant across both encoder roles.
func ListRunning(execName string) []int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	name := filepath.Base(execName)
	var pids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		if processCommName(pid) == name {
			pids = append(pids, pid)
		}
	}
	return pids
}

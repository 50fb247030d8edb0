package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// processTreeRSSMB sums VmRSS across a process and all of its descendants
// by walking /proc once. Chromium spreads its footprint over renderer and
// GPU children, so the root process alone badly underestimates usage.
func processTreeRSSMB(rootPID int) (int, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, fmt.Errorf("read /proc: %w", err)
	}

	parents := make(map[int]int)
	rss := make(map[int]int)
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		ppid, kb, ok := readStatus(pid)
		if !ok {
			continue
		}
		parents[pid] = ppid
		rss[pid] = kb
	}

	if _, ok := rss[rootPID]; !ok {
		return 0, fmt.Errorf("process %d not found", rootPID)
	}

	inTree := map[int]bool{rootPID: true}
	// Children appear after parents in pid order often enough that a few
	// passes close the transitive set.
	for changed := true; changed; {
		changed = false
		for pid, ppid := range parents {
			if !inTree[pid] && inTree[ppid] {
				inTree[pid] = true
				changed = true
			}
		}
	}

	totalKB := 0
	for pid := range inTree {
		totalKB += rss[pid]
	}
	return totalKB / 1024, nil
}

// readStatus extracts PPid and VmRSS (kB) from /proc/<pid>/status.
func readStatus(pid int) (ppid, rssKB int, ok bool) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "status"))
	if err != nil {
		return 0, 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		switch {
		case strings.HasPrefix(line, "PPid:"):
			ppid, _ = strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "PPid:")))
		case strings.HasPrefix(line, "VmRSS:"):
			fields := strings.Fields(strings.TrimPrefix(line, "VmRSS:"))
			if len(fields) > 0 {
				rssKB, _ = strconv.Atoi(fields[0])
			}
		}
	}
	return ppid, rssKB, true
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// probeTimeout bounds a single process listing.
const probeTimeout = 2 * time.Second

// ProcessProbe reports whether a process with one of names is running.
type ProcessProbe func(ctx context.Context, names []string) (bool, error)

// SystemProbe lists processes with pgrep, or tasklist on Windows. Processes
// started by this program, such as the automation browser, are ignored on
// Unix.
func SystemProbe(ctx context.Context, names []string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if runtime.GOOS == "windows" {
		return tasklistProbe(ctx, names)
	}

	var found []int
	for _, name := range names {
		pids, err := pgrep(ctx, "-x", name)
		if err != nil {
			return false, err
		}
		found = append(found, pids...)
	}
	if len(found) == 0 {
		return false, nil
	}

	own := make(map[int]bool)
	for _, pid := range descendantPIDs(ctx, os.Getpid()) {
		own[pid] = true
	}
	for _, pid := range found {
		if !own[pid] {
			return true, nil
		}
	}
	return false, nil
}

// pgrep runs pgrep with args. Exit status 1 means no match.
func pgrep(ctx context.Context, args ...string) ([]int, error) {
	output, err := exec.CommandContext(ctx, "pgrep", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("pgrep %s: %w", strings.Join(args, " "), err)
	}
	return parsePIDs(string(output)), nil
}

// descendantPIDs returns all descendants of pid, recursively.
func descendantPIDs(ctx context.Context, pid int) []int {
	children, err := pgrep(ctx, "-P", strconv.Itoa(pid))
	if err != nil {
		return nil
	}
	var all []int
	for _, child := range children {
		all = append(all, child)
		all = append(all, descendantPIDs(ctx, child)...)
	}
	return all
}

func parsePIDs(output string) []int {
	var pids []int
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}

func tasklistProbe(ctx context.Context, names []string) (bool, error) {
	for _, name := range names {
		output, err := exec.CommandContext(ctx, "tasklist", "/FI", "IMAGENAME eq "+name, "/NH").Output()
		if err != nil {
			return false, fmt.Errorf("tasklist %s: %w", name, err)
		}
		if tasklistHasImage(string(output), name) {
			return true, nil
		}
	}
	return false, nil
}

// tasklistHasImage reports whether tasklist output lists the image name.
// tasklist prints an informational line instead of rows when nothing matches.
func tasklistHasImage(output, name string) bool {
	name = strings.ToLower(name)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(strings.ToLower(line))
		if len(fields) > 0 && fields[0] == name {
			return true
		}
	}
	return false
}

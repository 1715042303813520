//go:build linux

package diagnostics

import (
	"bufio"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

type memory struct {
	Total  uint64
	Free   uint64
	Uptime time.Duration
	Loads  [3]float64
}

func hostMemory() (memory, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return memory{}, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	m := memory{
		Total:  uint64(info.Totalram) * unit,
		Free:   uint64(info.Freeram) * unit,
		Uptime: time.Duration(info.Uptime) * time.Second,
	}
	for i := range m.Loads {
		m.Loads[i] = float64(info.Loads[i]) / 65536
	}
	return m, nil
}

func cpuModel() string {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, val, ok := strings.Cut(scanner.Text(), ":")
		if ok && strings.TrimSpace(key) == "model name" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

func release() (string, string) {
	var uts unix.Utsname
	kernel := ""
	if err := unix.Uname(&uts); err == nil {
		kernel = unix.ByteSliceToString(uts.Release[:])
	}
	return parseOSRelease("/etc/os-release"), kernel
}

// cpuTime returns user and system CPU time in microseconds.
func cpuTime() (int64, int64) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, 0
	}
	return ru.Utime.Nano() / 1000, ru.Stime.Nano() / 1000
}

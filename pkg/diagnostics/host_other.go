//go:build !linux

package diagnostics

import (
	"errors"
	"time"
)

type memory struct {
	Total  uint64
	Free   uint64
	Uptime time.Duration
	Loads  [3]float64
}

func hostMemory() (memory, error) {
	return memory{}, errors.New("memory statistics unsupported on this platform")
}

func cpuModel() string {
	return ""
}

func release() (string, string) {
	return "", ""
}

func cpuTime() (int64, int64) {
	return 0, 0
}

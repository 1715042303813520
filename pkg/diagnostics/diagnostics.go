package diagnostics

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sameehj/xweb/pkg/exec"
)

// Runner executes a host command for the disk report.
type Runner interface {
	Execute(command string) exec.Outcome
}

type SystemInfo struct {
	Platform          string                        `json:"platform"`
	Architecture      string                        `json:"architecture"`
	Hostname          string                        `json:"hostname"`
	Distro            string                        `json:"distro,omitempty"`
	Kernel            string                        `json:"kernel,omitempty"`
	TotalMemory       string                        `json:"totalMemory"`
	FreeMemory        string                        `json:"freeMemory"`
	MemoryUsage       string                        `json:"memoryUsage"`
	CPUs              int                           `json:"cpus"`
	CPUModel          string                        `json:"cpuModel"`
	Uptime            string                        `json:"uptime"`
	LoadAverage       []string                      `json:"loadAverage"`
	NetworkInterfaces map[string][]InterfaceAddress `json:"networkInterfaces"`
}

type InterfaceAddress struct {
	Address  string `json:"address"`
	Family   string `json:"family"`
	Internal bool   `json:"internal"`
}

type ProcessInfo struct {
	GoVersion     string      `json:"goVersion"`
	PID           int         `json:"pid"`
	ProcessUptime string      `json:"processUptime"`
	Goroutines    int         `json:"goroutines"`
	MemoryUsage   MemoryUsage `json:"memoryUsage"`
	CPUUsage      CPUUsage    `json:"cpuUsage"`
}

type MemoryUsage struct {
	Sys       string `json:"sys"`
	HeapAlloc string `json:"heapAlloc"`
	HeapInuse string `json:"heapInuse"`
	StackSys  string `json:"stackSys"`
}

// CPUUsage is cumulative CPU time in microseconds.
type CPUUsage struct {
	User   int64 `json:"user"`
	System int64 `json:"system"`
}

// Collector gathers host and process metrics.
type Collector struct {
	runner  Runner
	started time.Time
}

func NewCollector(runner Runner) *Collector {
	return &Collector{runner: runner, started: time.Now()}
}

func (c *Collector) System() (*SystemInfo, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname: %w", err)
	}
	info := &SystemInfo{
		Platform:          runtime.GOOS,
		Architecture:      runtime.GOARCH,
		Hostname:          hostname,
		CPUs:              runtime.NumCPU(),
		CPUModel:          cpuModel(),
		NetworkInterfaces: networkInterfaces(),
	}
	info.Distro, info.Kernel = release()

	mem, err := hostMemory()
	if err == nil {
		info.TotalMemory = humanize.IBytes(mem.Total)
		info.FreeMemory = humanize.IBytes(mem.Free)
		if mem.Total > 0 {
			info.MemoryUsage = fmt.Sprintf("%.2f%%", (1-float64(mem.Free)/float64(mem.Total))*100)
		}
		info.Uptime = FormatUptime(mem.Uptime)
		info.LoadAverage = make([]string, len(mem.Loads))
		for i, l := range mem.Loads {
			info.LoadAverage[i] = fmt.Sprintf("%.2f", l)
		}
	} else {
		info.LoadAverage = []string{}
	}
	return info, nil
}

func (c *Collector) Process() *ProcessInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	user, system := cpuTime()
	return &ProcessInfo{
		GoVersion:     runtime.Version(),
		PID:           os.Getpid(),
		ProcessUptime: FormatUptime(time.Since(c.started)),
		Goroutines:    runtime.NumGoroutine(),
		MemoryUsage: MemoryUsage{
			Sys:       humanize.IBytes(ms.Sys),
			HeapAlloc: humanize.IBytes(ms.HeapAlloc),
			HeapInuse: humanize.IBytes(ms.HeapInuse),
			StackSys:  humanize.IBytes(ms.StackSys),
		},
		CPUUsage: CPUUsage{User: user, System: system},
	}
}

// Disk reports filesystem usage using the host's own tooling.
func (c *Collector) Disk() (string, error) {
	if c.runner == nil {
		return "", errors.New("no command runner configured")
	}
	command := "df -h"
	if runtime.GOOS == "windows" {
		command = "wmic logicaldisk get size,freespace,caption"
	}
	out := c.runner.Execute(command)
	if out.Status != exec.StatusSuccess {
		return "", fmt.Errorf("disk usage: %s", out.Error)
	}
	return out.Output, nil
}

// FormatUptime renders d as "Xd Yh Zm".
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Minute)
	days := total / (24 * 60)
	hours := (total % (24 * 60)) / 60
	minutes := total % 60
	return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
}

func networkInterfaces() map[string][]InterfaceAddress {
	out := make(map[string][]InterfaceAddress)
	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		list := []InterfaceAddress{}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			family := "IPv6"
			if ip.To4() != nil {
				family = "IPv4"
			}
			list = append(list, InterfaceAddress{
				Address:  ip.String(),
				Family:   family,
				Internal: iface.Flags&net.FlagLoopback != 0,
			})
		}
		out[iface.Name] = list
	}
	return out
}

func parseOSRelease(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var name, version string
	for _, line := range strings.Split(string(data), "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"`)
		switch key {
		case "PRETTY_NAME":
			return val
		case "NAME":
			name = val
		case "VERSION_ID":
			version = val
		}
	}
	return strings.TrimSpace(name + " " + version)
}

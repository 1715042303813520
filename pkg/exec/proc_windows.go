//go:build windows

package exec

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

// signalGroup has no graceful stage on windows; both stages kill the child.
func signalGroup(p *os.Process, kill bool) error {
	return p.Kill()
}

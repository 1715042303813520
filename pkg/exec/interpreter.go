package exec

import (
	"os/exec"
	"runtime"
	"strings"
)

// Interpreter turns a sanitized command string into a child process.
type Interpreter interface {
	Command(command string) *exec.Cmd
}

// Shell runs commands through a host command interpreter, e.g. "sh -c".
type Shell struct {
	Path string
	Args []string
}

// DefaultShell returns the platform command interpreter.
func DefaultShell() Shell {
	switch runtime.GOOS {
	case "windows":
		return Shell{Path: "powershell", Args: []string{"-NoProfile", "-NonInteractive", "-Command"}}
	default:
		return Shell{Path: "sh", Args: []string{"-c"}}
	}
}

// ParseShell parses an interpreter spec such as "/bin/bash -c". An empty spec
// yields DefaultShell.
func ParseShell(spec string) Shell {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return DefaultShell()
	}
	return Shell{Path: fields[0], Args: fields[1:]}
}

func (s Shell) Command(command string) *exec.Cmd {
	args := make([]string, 0, len(s.Args)+1)
	args = append(args, s.Args...)
	args = append(args, command)
	return exec.Command(s.Path, args...)
}

func (s Shell) String() string {
	return strings.TrimSpace(s.Path + " " + strings.Join(s.Args, " "))
}

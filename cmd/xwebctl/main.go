package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sameehj/xweb/pkg/client"
	"github.com/spf13/pflag"
)

var (
	addr    string
	command string
	timeout time.Duration
)

func main() {
	pflag.StringVar(&addr, "addr", "ws://127.0.0.1:3000/", "channel URL of a running xweb server")
	pflag.StringVarP(&command, "command", "c", "", "run a single command and exit")
	pflag.DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for each result")
	pflag.Parse()

	if err := run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, addr, timeout)
	if err != nil {
		return err
	}
	defer c.Close()

	if command != "" {
		output, err := c.Run(command)
		if err != nil {
			return err
		}
		fmt.Fprint(out, output)
		return nil
	}
	return c.Interactive(in, out, prompt(in))
}

// prompt is shown only when reading from a terminal.
func prompt(in io.Reader) string {
	f, ok := in.(*os.File)
	if !ok {
		return ""
	}
	info, err := f.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return ""
	}
	return "xweb> "
}

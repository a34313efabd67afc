package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: pagelens <command> [flags]

commands:
  inspect   capture elements and export them
  pentest   run the security checklist
  sitedata  show or clear client-side site data
  serve     run the HTTP service
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var cmd func(context.Context, []string, io.Writer, io.Writer) error
	switch args[0] {
	case "inspect":
		cmd = inspect
	case "pentest":
		cmd = pentestCmd
	case "sitedata":
		cmd = sitedataCmd
	case "serve":
		cmd = serve
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err := cmd(ctx, args[1:], stdout, stderr); err != nil {
		if err == errUsage {
			return 2
		}
		fmt.Fprintf(stderr, "pagelens %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/roach88/cropper/internal/cli"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// shutdownSignals cancel the command context.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	cli.Version = version
	root := cli.NewRootCommand()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(shutdownSignals...),
	); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}

package main

import (
	"context"
	"os"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"

	"github.com/sergical/openclaw-ec2-setup/cmd/openclaw/commands"
)

func main() {
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	})
	ctx := clog.WithLogger(context.Background(), clog.New(handler))
	commands.Execute(ctx)
}

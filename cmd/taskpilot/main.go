package main

import (
	"context"
	"os"

	"taskpilot/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), cli.NewApp(), os.Args[1:]))
}

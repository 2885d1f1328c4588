package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/jon4hz/vaxboard/cmd"
	"github.com/jon4hz/vaxboard/internal/version"
)

func main() {
	if err := fang.Execute(context.Background(), cmd.Root(), fang.WithVersion(version.Version)); err != nil {
		os.Exit(1)
	}
}

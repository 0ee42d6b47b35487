package main

import (
	"github.com/robotalks/splitkb/pkg/cli/sh"
	"github.com/robotalks/splitkb/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}

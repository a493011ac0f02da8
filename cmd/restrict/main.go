package main

import (
	"os"

	"github.com/psantana5/restrict/cmd/restrict/cmd"
	"github.com/psantana5/restrict/internal/cgroups"
	"github.com/psantana5/restrict/internal/executor"
)

func main() {
	executor.Register(cgroups.HookName, cgroups.JoinHook)
	if executor.Init() {
		return
	}
	os.Exit(cmd.Execute())
}

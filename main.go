package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/vault/cmd"
	"github.com/mezonai/vault/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("VAULTCTL CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}

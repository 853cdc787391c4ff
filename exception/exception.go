package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/vault/logx"
	"github.com/mezonai/vault/monitoring"
)

// SafeGo runs fn in a goroutine, logging and counting a panic instead of crashing
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reportPanic(name, r)
			}
		}()
		fn()
	}()
}

// SafeGoWithPanic is SafeGo for goroutines the process cannot run without
func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reportPanic(name, r)
				os.Exit(1)
			}
		}()
		fn()
	}()
}

func reportPanic(name string, r interface{}) {
	monitoring.IncreasePanicCount()
	logx.Error("PANIC", "Panic in ", name, ": ", r, "\n", string(debug.Stack()))
}

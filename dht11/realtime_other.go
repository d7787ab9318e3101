//go:build !linux

package dht11

import (
	"runtime"

	"github.com/rs/zerolog"
)

func lockThread(log zerolog.Logger) func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}

package dht11

import (
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// highest nice priority, needs CAP_SYS_NICE
const decodePriority = -20

// lockThread pins the calling goroutine to its OS thread and raises the
// thread priority for the duration of a read. The returned function
// restores both.
func lockThread(log zerolog.Logger) func() {
	runtime.LockOSThread()

	tid := unix.Gettid()
	prev, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		log.Debug().Err(err).Msg("getpriority")
		return runtime.UnlockOSThread
	}
	// the raw syscall returns 20-nice
	prev = 20 - prev

	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, decodePriority); err != nil {
		log.Debug().Err(err).Msg("setpriority, reading at normal priority")
		return runtime.UnlockOSThread
	}

	return func() {
		if err := unix.Setpriority(unix.PRIO_PROCESS, tid, prev); err != nil {
			log.Debug().Err(err).Msg("restore priority")
		}
		runtime.UnlockOSThread()
	}
}

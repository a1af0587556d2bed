package app

import (
	"log"
	"sync/atomic"
)

var debugEnabled atomic.Bool

// SetDebug turns per-frame debug logging on or off.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

func debugf(format string, args ...any) {
	if debugEnabled.Load() {
		log.Printf("debug: "+format, args...)
	}
}

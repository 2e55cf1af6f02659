package app

import (
	"log"
	"time"
)

// startHousekeeping запускает фоновые задачи обслуживания: ротацию логов и
// периодический отчет о состоянии процесса.
func startHousekeeping(stop <-chan struct{}) {
	safeGo("housekeeping", func() {
		rotate := time.NewTicker(1 * time.Hour)
		report := time.NewTicker(6 * time.Hour)
		defer rotate.Stop()
		defer report.Stop()

		for {
			select {
			case <-stop:
				return
			case <-rotate.C:
				RotateLogsIfNeeded()
			case <-report.C:
				goroutines, alloc, _, sys := runtimeStats()
				log.Printf("💤 Состояние процесса: uptime=%s, goroutines=%d, heap=%s, sys=%s",
					formatDuration(time.Since(appStartedAt)), goroutines, formatBytes(alloc), formatBytes(sys))
			}
		}
	})
}

package app

import (
	"log"
	"time"
)

// Не более двух тяжелых задач одновременно (рассылки, сжатие логов).
var heavyLimiter = make(chan struct{}, 2)

func runHeavy(name string, fn func()) {
	safeGo(name, func() {
		heavyLimiter <- struct{}{}
		defer func() { <-heavyLimiter }()

		started := time.Now()
		fn()
		log.Printf("🏁 Задача %s завершена за %s", name, formatDuration(time.Since(started)))
	})
}

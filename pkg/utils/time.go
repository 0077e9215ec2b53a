package utils

import (
	"fmt"
	"time"
)

// RelativeAge форматирует возраст момента времени меткой "Xm ago" (целые минуты вниз).
// Формат входит в контекст оракула, клиентские промпты на него завязаны - не менять.
func RelativeAge(at, now time.Time) string {
	d := now.Sub(at)
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dm ago", int(d.Minutes()))
}

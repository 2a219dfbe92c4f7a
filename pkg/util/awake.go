package util

import (
	"context"
	"time"

	"github.com/go-vgo/robotgo"
	"github.com/rs/zerolog/log"
)

// AwakeInterval is how often the pointer is nudged while waiting.
const AwakeInterval = 1 * time.Minute

// nudgeDistance is the pointer offset in pixels. The pointer always returns
// to where the user left it.
const nudgeDistance = 3

// Mover moves the pointer by a relative offset.
type Mover func(dx, dy int)

// robotgoMover moves the real pointer.
func robotgoMover(dx, dy int) {
	x, y := robotgo.GetMousePos()
	robotgo.Move(x+dx, y+dy)
}

// KeepAwake stops the machine from going idle until ctx is done.
func KeepAwake(ctx context.Context) {
	Nudge(ctx, AwakeInterval, robotgoMover)
}

// Nudge calls move every interval with a small offset and immediately moves
// back. It returns the number of nudges once ctx is done.
func Nudge(ctx context.Context, interval time.Duration, move Mover) int {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", interval).Msg("Keep-awake started")

	n := 0
	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("nudges", n).Msg("Keep-awake stopped")
			return n
		case <-ticker.C:
			d := nudgeDistance
			if n%2 == 1 {
				d = -d
			}
			move(d, d)
			move(-d, -d)
			n++
		}
	}
}

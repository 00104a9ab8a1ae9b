package timescope

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var previewParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Next returns the next n activation times of timing after from. @reboot
// has no calendar activations and yields an empty slice.
func Next(timing string, from time.Time, n int) ([]time.Time, error) {
	if timing == "@reboot" || n <= 0 {
		return nil, nil
	}
	sched, err := previewParser.Parse(timing)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnresolvable, timing, err)
	}

	out := make([]time.Time, 0, n)
	t := from
	for range n {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

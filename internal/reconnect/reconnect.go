// Package reconnect provides the backoff schedule pack agents use when the
// host connection drops.
package reconnect

import "time"

// Schedule holds the wait before each successive reconnect attempt. Early
// attempts retry quickly so a host restart is barely noticeable.
var Schedule = []time.Duration{
	time.Second, time.Second, time.Second,
	5 * time.Second, 5 * time.Second, 5 * time.Second,
	15 * time.Second, 15 * time.Second, 15 * time.Second,
}

// Delay returns the wait before the given attempt. Attempts past the end of
// the schedule settle at 30 seconds.
func Delay(attempt int) time.Duration {
	if attempt < len(Schedule) {
		return Schedule[attempt]
	}
	return 30 * time.Second
}

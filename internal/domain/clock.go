package domain

import "github.com/jonboulle/clockwork"

// clock stamps ReceivedAt on parsed readings. Tests freeze it via SetClock so
// parsed fixtures are reproducible.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used while parsing. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

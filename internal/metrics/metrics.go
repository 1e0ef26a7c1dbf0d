// Package metrics decouples the engine from any concrete metrics backend.
// Components record onto a Sink; wiring decides whether that is Prometheus
// or nothing at all.
package metrics

// Sink receives engine measurements. Implementations must be safe for
// concurrent use and must never block the caller.
type Sink interface {
	DiscoveryCycle(kind string, found, added int)
	CleanupRun(kept, removed int)
	ApplicationAttempt(method string, success bool)
	ScheduleRun(success bool)
	RunsInFlight(delta int)
}

// Noop is the default sink when metrics are disabled.
type Noop struct{}

func (Noop) DiscoveryCycle(string, int, int) {}
func (Noop) CleanupRun(int, int)             {}
func (Noop) ApplicationAttempt(string, bool) {}
func (Noop) ScheduleRun(bool)                {}
func (Noop) RunsInFlight(int)                {}

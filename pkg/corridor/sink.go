package corridor

import "github.com/travigo/corridor/pkg/ctdf"

// Sink receives every event the engine emits. Emit is called while the affected
// signal is locked so implementations must hand the event off without blocking.
type Sink interface {
	Emit(event ctdf.Event)
}

type SinkFunc func(event ctdf.Event)

func (f SinkFunc) Emit(event ctdf.Event) {
	f(event)
}

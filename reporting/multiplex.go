package reporting

import (
	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// Combine wraps any number of event callbacks behind one callable for the
// engine. Zero callbacks yield nil so the engine skips delivery entirely;
// one callback is returned directly; several become a combinator forwarding
// the identical arguments to each in registration order, synchronously. A
// panic inside a wrapped callback is not recovered here: sinks must not
// fail during normal event delivery.
func Combine(fns []engine.EventFn) engine.EventFn {
	switch len(fns) {
	case 0:
		return nil
	case 1:
		return fns[0]
	default:
		combined := make([]engine.EventFn, len(fns))
		copy(combined, fns)
		return func(kind event.Kind, scopes []string, logs event.Logs) {
			for _, fn := range combined {
				fn(kind, scopes, logs)
			}
		}
	}
}

// Fanout partitions a set of per-test handles by their masks into the
// per-kind callback vector handed to the engine: for each kind, only the
// handles subscribed to it are wired in, and a kind nobody wants stays nil.
// Traceback callbacks are wired for every handle regardless of mask, since
// tracebacks are buffered by sinks and surface inside the next exception.
func Fanout(handles []TestHandle, masks []event.Mask) engine.Fanout {
	var fanout engine.Fanout
	for k := 0; k < event.NumKinds; k++ {
		kind := event.Kind(k)
		var fns []engine.EventFn
		for i, h := range handles {
			if masks[i].Accepts(kind) {
				fns = append(fns, h.Event)
			}
		}
		fanout[k] = Combine(fns)
	}
	return fanout
}

package stream

// Gate is a single-slot admission control: at most one synthesis job may hold
// the permit at any instant. Acquisition never blocks; a failed attempt is
// immediately observable by the caller.
type Gate struct {
	slot chan struct{}
}

func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// TryAcquire takes the permit if it is free and reports whether it succeeded.
func (g *Gate) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns the permit. Must be paired 1:1 with a successful TryAcquire,
// typically via defer around the whole worker body.
func (g *Gate) Release() {
	select {
	case <-g.slot:
	default:
	}
}

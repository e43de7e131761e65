package progression

// Handler is implemented by every tracker the dispatcher fans events out to.
type Handler interface {
	Handle(ev Event, p *Player) []GoalCompleted
}

// Dispatcher delivers events to its handlers in registration order. Events
// the player raises while handlers run (realm_up, concept_mastery) are
// queued behind the current one, so every handler sees every event exactly
// once and in the same order.
type Dispatcher struct {
	handlers []Handler
}

// NewDispatcher returns a dispatcher over handlers. Nil handlers are skipped.
func NewDispatcher(handlers ...Handler) *Dispatcher {
	d := &Dispatcher{}
	for _, h := range handlers {
		if h != nil {
			d.handlers = append(d.handlers, h)
		}
	}
	return d
}

// Dispatch delivers ev and then anything pending in the player's outbox.
// The event payload is copied before delivery; handlers read live player
// state.
func (d *Dispatcher) Dispatch(ev Event, p *Player) []GoalCompleted {
	return d.run(append([]Event{ev.snapshot()}, p.drainOutbox()...), p)
}

// Drain delivers only the events pending in the player's outbox. Callers use
// it after operations that grant rewards outside of Dispatch.
func (d *Dispatcher) Drain(p *Player) []GoalCompleted {
	return d.run(p.drainOutbox(), p)
}

func (d *Dispatcher) run(queue []Event, p *Player) []GoalCompleted {
	var out []GoalCompleted
	for len(queue) > 0 {
		ev := queue[0]
		queue = queue[1:]
		for _, h := range d.handlers {
			out = append(out, h.Handle(ev, p)...)
			queue = append(queue, p.drainOutbox()...)
		}
	}
	return out
}

package events

// Sink receives comment events.
type Sink interface {
	Publish(subject string, ev Event)
}

type fanout []Sink

func (f fanout) Publish(subject string, ev Event) {
	for _, s := range f {
		s.Publish(subject, ev)
	}
}

// Fanout delivers every event to each non-nil sink in order. It returns nil
// when no sink is given.
func Fanout(sinks ...Sink) Sink {
	var out fanout
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

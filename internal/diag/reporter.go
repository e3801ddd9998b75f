package diag

// Reporter receives messages from the weaving pipeline.
// Implementations: BagReporter, FuncReporter, MultiReporter, DedupReporter.
type Reporter interface {
	Report(m Message)
}

// BagReporter adds messages to a Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(m Message) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(m)
}

// FuncReporter adapts a function to Reporter.
type FuncReporter func(Message)

func (f FuncReporter) Report(m Message) {
	if f != nil {
		f(m)
	}
}

// MultiReporter fans messages out to every reporter in order.
type MultiReporter []Reporter

func (rs MultiReporter) Report(m Message) {
	for _, r := range rs {
		if r != nil {
			r.Report(m)
		}
	}
}

// MinSeverity forwards only messages at or above Min. Stopping messages are
// always forwarded.
type MinSeverity struct {
	Min  Severity
	Next Reporter
}

func (r MinSeverity) Report(m Message) {
	if r.Next == nil {
		return
	}
	if m.Severity >= r.Min || m.StoppedWeaving {
		r.Next.Report(m)
	}
}

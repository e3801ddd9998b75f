package diag

type dedupKey struct {
	code   Code
	sev    Severity
	sender string
	target string
	text   string
}

// DedupReporter wraps another Reporter and suppresses duplicate messages
// with the same code, severity, sender, target and text.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

// NewDedupReporter returns a Reporter that filters out duplicates while
// forwarding unique messages to the provided reporter.
func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(m Message) {
	if r == nil {
		return
	}
	key := dedupKey{code: m.Code, sev: m.Severity, sender: m.Sender, target: m.Target, text: m.Text}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(m)
	}
}

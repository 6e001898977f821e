package collector

// Outcome is the result of submitting one metric kind.
type Outcome int

const (
	// Submitted kinds were accepted by the primary handler.
	Submitted Outcome = iota
	// MissingTopic kinds weren't submitted because a listed topic had no
	// stats this cycle, or its stats lacked the kind's field.
	MissingTopic
	// Failed kinds were rejected or couldn't be built.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Submitted:
		return "submitted"
	case MissingTopic:
		return "missing_topic"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// KindResult describes the submission of one metric kind.
type KindResult struct {
	Kind         string
	Outcome      Outcome
	Series       int
	Err          error
	MirrorErrors []error
}

// Report summarizes a cycle.
type Report struct {
	// Topics is the number of distinct topics requested.
	Topics int
	// Fetched is the number of topics with stats.
	Fetched     int
	FetchErrors []error
	// Skipped is true if nothing was fetched and so nothing submitted.
	Skipped bool
	Kinds   []KindResult
}

// Submitted returns the number of kinds accepted by the primary handler.
func (r *Report) Submitted() int {
	var n int
	for _, k := range r.Kinds {
		if k.Outcome == Submitted {
			n++
		}
	}

	return n
}

// OK returns whether at least one kind was submitted.
func (r *Report) OK() bool {
	return r.Submitted() > 0
}

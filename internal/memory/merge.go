package memory

import (
	"fmt"
	"strings"

	"subfix/internal/glossary"
)

// Policy selects how proposed entries are reconciled against the
// authoritative glossary. Lock is the only policy today; the type exists so a
// softer policy (for example refreshing evidence on agreement) can be added
// without changing the merge signature.
type Policy string

// PolicyLock rejects every proposal whose source term is already
// authoritative. The authoritative target always wins, even when the
// proposal agrees with it.
const PolicyLock Policy = "lock"

// ParsePolicy validates a configured policy identifier.
func ParsePolicy(raw string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(raw)))
	if p == PolicyLock {
		return p, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", raw)
}

// MergeOptions configures a merge pass.
type MergeOptions struct {
	Policy        Policy
	MinConfidence float64
	// MaxLearned bounds the learned glossary after the merge; zero disables
	// the bound.
	MaxLearned int
}

// Report counts what happened to each proposal. Conflicts lists the source
// terms whose proposed target disagreed with the authoritative one, for
// logging.
type Report struct {
	Accepted       int
	Conflicting    int
	DuplicateAuth  int
	AlreadyLearned int
	Filtered       int
	Conflicts      []string
}

// Merge reconciles extraction proposals against the state and returns the
// updated state plus an accounting of every proposal's fate. Proposals are
// processed in input order; eviction runs once after all proposals.
//
// The confidence/category filter is the extraction boundary's job, but
// malformed entries that leak through are dropped here rather than trusted.
func Merge(s State, proposed []glossary.Entry, opts MergeOptions) (State, Report, error) {
	var report Report
	if opts.Policy != PolicyLock {
		return s, report, fmt.Errorf("unsupported merge policy %q", opts.Policy)
	}

	clean := glossary.Sanitize(proposed, opts.MinConfidence)
	report.Filtered = len(proposed) - len(clean)

	authoritative := make(map[string]glossary.Entry, len(s.Authoritative))
	for _, e := range s.Authoritative {
		authoritative[strings.ToLower(e.Source)] = e
	}
	learned := make(map[string]struct{}, len(s.Learned))
	for _, e := range s.Learned {
		learned[e.Source] = struct{}{}
	}

	out := s.Clone()
	for _, p := range clean {
		if auth, ok := authoritative[strings.ToLower(p.Source)]; ok {
			if auth.Target != "" && auth.Target != p.Target {
				report.Conflicting++
				report.Conflicts = append(report.Conflicts, p.Source)
			} else {
				report.DuplicateAuth++
			}
			continue
		}
		if _, ok := learned[p.Source]; ok {
			report.AlreadyLearned++
			continue
		}
		out.Learned = append(out.Learned, p)
		learned[p.Source] = struct{}{}
		report.Accepted++
	}

	out = EvictLearned(out, opts.MaxLearned)
	return out, report, nil
}

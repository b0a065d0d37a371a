package memory

import (
	"testing"

	"subfix/internal/glossary"
)

func entry(source, target string, category glossary.Category, confidence float64) glossary.Entry {
	return glossary.Entry{Source: source, Target: target, Category: category, Confidence: confidence}
}

func lockOpts() MergeOptions {
	return MergeOptions{Policy: PolicyLock, MinConfidence: 0.6, MaxLearned: 100}
}

func TestMergeLockConflict(t *testing.T) {
	state := NewState()
	state.Authoritative = []glossary.Entry{entry("Chris", "克里斯", glossary.CategoryPerson, 1)}

	next, report, err := Merge(state, []glossary.Entry{
		entry("Chris", "克裏斯", glossary.CategoryPerson, 0.9),
	}, lockOpts())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.Conflicting != 1 || report.Accepted != 0 {
		t.Fatalf("expected 1 conflict, 0 accepted; got %+v", report)
	}
	if len(report.Conflicts) != 1 || report.Conflicts[0] != "Chris" {
		t.Fatalf("conflict term not reported: %+v", report.Conflicts)
	}
	if len(next.Learned) != 0 {
		t.Fatalf("learned glossary must stay empty, got %+v", next.Learned)
	}
}

func TestMergeLockConflictCaseInsensitive(t *testing.T) {
	state := NewState()
	state.Authoritative = []glossary.Entry{entry("Chris", "克里斯", glossary.CategoryPerson, 1)}

	_, report, err := Merge(state, []glossary.Entry{
		entry("CHRIS", "克裏斯", glossary.CategoryPerson, 0.9),
	}, lockOpts())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.Conflicting != 1 {
		t.Fatalf("case-insensitive authoritative match missed: %+v", report)
	}
}

func TestMergeLockAgreementIsDuplicate(t *testing.T) {
	state := NewState()
	state.Authoritative = []glossary.Entry{entry("Chris", "克里斯", glossary.CategoryPerson, 1)}

	next, report, err := Merge(state, []glossary.Entry{
		entry("Chris", "克里斯", glossary.CategoryPerson, 0.9),
	}, lockOpts())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.DuplicateAuth != 1 || report.Conflicting != 0 {
		t.Fatalf("agreeing proposal should be a silent duplicate: %+v", report)
	}
	if len(next.Learned) != 0 {
		t.Fatal("agreeing proposal must not enter the learned glossary")
	}
}

func TestMergeAcceptThenAlreadyLearned(t *testing.T) {
	state := NewState()

	proposal := entry("Bryer", "布赖尔", glossary.CategoryPerson, 0.8)
	next, report, err := Merge(state, []glossary.Entry{proposal}, lockOpts())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.Accepted != 1 || len(next.Learned) != 1 {
		t.Fatalf("first proposal should be accepted: %+v", report)
	}

	// The identical proposal in a later batch is rejected, not duplicated.
	final, report, err := Merge(next, []glossary.Entry{proposal}, lockOpts())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.AlreadyLearned != 1 || report.Accepted != 0 {
		t.Fatalf("repeat proposal should be already-learned: %+v", report)
	}
	if len(final.Learned) != 1 {
		t.Fatalf("learned glossary duplicated: %+v", final.Learned)
	}
}

func TestMergeLearnedMatchIsCaseSensitive(t *testing.T) {
	state := NewState()
	state.Learned = []glossary.Entry{entry("Bryer", "布赖尔", glossary.CategoryPerson, 0.8)}

	next, report, err := Merge(state, []glossary.Entry{
		entry("BRYER", "布赖尔", glossary.CategoryAcronym, 0.9),
	}, lockOpts())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.Accepted != 1 {
		t.Fatalf("differently-cased learned term should be accepted: %+v", report)
	}
	if len(next.Learned) != 2 {
		t.Fatalf("expected 2 learned entries, got %d", len(next.Learned))
	}
}

func TestMergeFiltersLeakedEntries(t *testing.T) {
	state := NewState()
	proposals := []glossary.Entry{
		entry("LowConf", "低", glossary.CategoryPerson, 0.3),
		entry("BadCat", "坏", "starship", 0.9),
		entry("", "空", glossary.CategoryPerson, 0.9),
		entry("Good", "好", glossary.CategoryOther, 0.9),
	}
	next, report, err := Merge(state, proposals, lockOpts())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if report.Filtered != 3 || report.Accepted != 1 {
		t.Fatalf("expected 3 filtered, 1 accepted: %+v", report)
	}
	if len(next.Learned) != 1 || next.Learned[0].Source != "Good" {
		t.Fatalf("unexpected learned glossary: %+v", next.Learned)
	}
}

func TestMergeEviction(t *testing.T) {
	opts := MergeOptions{Policy: PolicyLock, MinConfidence: 0.6, MaxLearned: 3}
	state := NewState()
	names := []string{"One", "Two", "Three", "Four", "Five"}

	var err error
	for _, name := range names {
		state, _, err = Merge(state, []glossary.Entry{
			entry(name, "第"+name, glossary.CategoryOther, 0.9),
		}, opts)
		if err != nil {
			t.Fatalf("Merge(%s): %v", name, err)
		}
	}

	if len(state.Learned) != 3 {
		t.Fatalf("expected 3 learned entries after eviction, got %d", len(state.Learned))
	}
	want := []string{"Three", "Four", "Five"}
	for i, w := range want {
		if state.Learned[i].Source != w {
			t.Fatalf("expected %v in order, got %+v", want, state.Learned)
		}
	}
}

func TestMergeUnknownPolicy(t *testing.T) {
	_, _, err := Merge(NewState(), nil, MergeOptions{Policy: "append"})
	if err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	state := NewState()
	state.Learned = []glossary.Entry{entry("Keep", "留", glossary.CategoryOther, 0.9)}

	_, _, err := Merge(state, []glossary.Entry{
		entry("New", "新", glossary.CategoryOther, 0.9),
	}, lockOpts())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(state.Learned) != 1 {
		t.Fatalf("input state mutated: %+v", state.Learned)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(" Lock "); err != nil || p != PolicyLock {
		t.Fatalf("ParsePolicy(lock) = %q, %v", p, err)
	}
	if _, err := ParsePolicy("merge"); err == nil {
		t.Fatal("expected error for unknown policy name")
	}
}

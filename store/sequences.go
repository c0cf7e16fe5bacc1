package store

import "github.com/KBesada24/test-suite-manager/models"

// CaseOwner identifies a test case list: a suite's own list (ChildID == NoChild)
// or a child suite's list
type CaseOwner struct {
	SuiteID int
	ChildID int
}

// Sequences are the monotonic id counters of a store. Each counter holds the
// last id handed out; ids are never reused after a delete.
type Sequences struct {
	Suite    int
	Child    int
	TestCase map[CaseOwner]int
}

func newSequences() Sequences {
	return Sequences{TestCase: make(map[CaseOwner]int)}
}

func (q Sequences) cloneCases() map[CaseOwner]int {
	cases := make(map[CaseOwner]int, len(q.TestCase)+1)
	for owner, last := range q.TestCase {
		cases[owner] = last
	}
	return cases
}

func (q Sequences) withSuite(id int) Sequences {
	q.Suite = id
	return q
}

func (q Sequences) withChild(id int) Sequences {
	q.Child = id
	return q
}

func (q Sequences) withCase(owner CaseOwner, id int) Sequences {
	cases := q.cloneCases()
	cases[owner] = id
	q.TestCase = cases
	return q
}

// nextCase returns the next test case id for owner. Lists restored without a
// persisted counter still never collide with the ids already present.
func (q Sequences) nextCase(owner CaseOwner, cases []models.TestCase) int {
	last := q.TestCase[owner]
	for _, tc := range cases {
		if tc.ID > last {
			last = tc.ID
		}
	}
	return last + 1
}

// merge keeps the higher value of every counter
func (q Sequences) merge(other Sequences) Sequences {
	merged := Sequences{
		Suite:    max(q.Suite, other.Suite),
		Child:    max(q.Child, other.Child),
		TestCase: q.cloneCases(),
	}
	for owner, last := range other.TestCase {
		if last > merged.TestCase[owner] {
			merged.TestCase[owner] = last
		}
	}
	return merged
}

// seed raises every counter to at least the highest id present in suites
func (q Sequences) seed(suites []models.TestSuite) Sequences {
	seeded := Sequences{Suite: q.Suite, Child: q.Child, TestCase: q.cloneCases()}
	raiseCase := func(owner CaseOwner, cases []models.TestCase) {
		for _, tc := range cases {
			if tc.ID > seeded.TestCase[owner] {
				seeded.TestCase[owner] = tc.ID
			}
		}
	}

	for _, suite := range suites {
		seeded.Suite = max(seeded.Suite, suite.ID)
		raiseCase(CaseOwner{SuiteID: suite.ID}, suite.TestCases)
		for _, child := range suite.Children {
			seeded.Child = max(seeded.Child, child.ID)
			raiseCase(CaseOwner{SuiteID: suite.ID, ChildID: child.ID}, child.TestCases)
		}
	}
	return seeded
}

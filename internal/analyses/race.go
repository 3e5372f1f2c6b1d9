package analyses

import "sync"

type outcome struct {
	raw       string
	err       error
	timedOut  bool
	cancelled bool
}

// slot holds the first outcome settled into it. Later settles are dropped.
type slot struct {
	once sync.Once
	ch   chan outcome
}

func newSlot() *slot {
	return &slot{ch: make(chan outcome, 1)}
}

func (s *slot) settle(o outcome) bool {
	won := false
	s.once.Do(func() {
		s.ch <- o
		won = true
	})
	return won
}

func (s *slot) wait() outcome {
	return <-s.ch
}

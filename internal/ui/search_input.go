package ui

import (
	"sync"
	"time"
)

// DefaultSearchDebounce is the quiet period before typed text is committed.
const DefaultSearchDebounce = 300 * time.Millisecond

// SearchInput holds the text of the search box and commits it once typing settles.
type SearchInput struct {
	clock    Clock
	delay    time.Duration
	onSearch func(string)

	mu    sync.Mutex
	text  string
	timer Timer
	seq   uint64
}

// NewSearchInput builds an empty input. onSearch receives committed text and is never called
// with the input's lock held.
func NewSearchInput(clock Clock, delay time.Duration, onSearch func(string)) *SearchInput {
	if clock == nil {
		clock = RealClock()
	}
	if delay <= 0 {
		delay = DefaultSearchDebounce
	}
	if onSearch == nil {
		onSearch = func(string) {}
	}
	return &SearchInput{clock: clock, delay: delay, onSearch: onSearch}
}

// Type replaces the displayed text and restarts the debounce window.
func (s *SearchInput) Type(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.text = text
	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = s.clock.AfterFunc(s.delay, func() { s.commit(seq) })
}

func (s *SearchInput) commit(seq uint64) {
	s.mu.Lock()
	if seq != s.seq {
		// superseded by a later keystroke or a clear
		s.mu.Unlock()
		return
	}
	s.timer = nil
	text := s.text
	s.mu.Unlock()

	s.onSearch(text)
}

// Clear empties the input and commits "" without waiting.
func (s *SearchInput) Clear() {
	s.mu.Lock()
	s.text = ""
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.onSearch("")
}

// Text returns the displayed text.
func (s *SearchInput) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// ShowClear reports whether the clear button is shown.
func (s *SearchInput) ShowClear() bool {
	return s.Text() != ""
}

package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSearchInputEmitsOncePerWindow(t *testing.T) {
	clock := newManualClock()
	var emitted []string
	input := NewSearchInput(clock, 300*time.Millisecond, func(s string) { emitted = append(emitted, s) })

	for _, text := range []string{"m", "ma", "mat", "math"} {
		input.Type(text)
		assert.Equal(t, text, input.Text())
		clock.Advance(100 * time.Millisecond)
	}
	assert.Empty(t, emitted, "nothing commits while typing continues")

	clock.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"math"}, emitted)

	clock.Advance(time.Second)
	assert.Equal(t, []string{"math"}, emitted)
}

func TestSearchInputNoEmissionBeforeTyping(t *testing.T) {
	clock := newManualClock()
	calls := 0
	NewSearchInput(clock, 0, func(string) { calls++ })
	clock.Advance(time.Second)
	assert.Zero(t, calls)
}

func TestSearchInputClearIsImmediate(t *testing.T) {
	clock := newManualClock()
	var emitted []string
	input := NewSearchInput(clock, 300*time.Millisecond, func(s string) { emitted = append(emitted, s) })

	input.Type("chem")
	assert.True(t, input.ShowClear())
	input.Clear()

	assert.Equal(t, []string{""}, emitted)
	assert.False(t, input.ShowClear())
	assert.Equal(t, "", input.Text())

	// the pending "chem" commit must not fire after the clear
	clock.Advance(time.Second)
	assert.Equal(t, []string{""}, emitted)
}

func TestSearchInputSeparateWindowsEmitSeparately(t *testing.T) {
	clock := newManualClock()
	var emitted []string
	input := NewSearchInput(clock, 300*time.Millisecond, func(s string) { emitted = append(emitted, s) })

	input.Type("bio")
	clock.Advance(300 * time.Millisecond)
	input.Type("bio 1")
	clock.Advance(300 * time.Millisecond)

	assert.Equal(t, []string{"bio", "bio 1"}, emitted)
}

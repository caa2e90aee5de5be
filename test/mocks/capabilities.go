package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/celestiaorg/reelcast/internal/capability"
	"github.com/celestiaorg/reelcast/internal/db/models"
)

// MockCapability is a scriptable in-memory vendor
type MockCapability[In, Out any] struct {
	name string

	// Produce builds the result of the n-th submission (0-based)
	Produce func(n int, in In) Out
	// RejectOn returns a non-nil error to reject the n-th submission outright
	RejectOn func(n int, in In) error
	// FailOn returns a reason to make the n-th operation fail
	FailOn func(n int, in In) string
	// PendingPolls is how many polls report pending before a result is visible
	PendingPolls int
	// Hold keeps every operation pending until Release is called
	Hold bool

	mu          sync.Mutex
	submissions []In
	results     map[capability.Handle]capability.PollResult[Out]
	polls       map[capability.Handle]int
	released    map[capability.Handle]bool
}

// NewMockCapability creates a mock vendor
func NewMockCapability[In, Out any](name string, produce func(n int, in In) Out) *MockCapability[In, Out] {
	return &MockCapability[In, Out]{
		name:     name,
		Produce:  produce,
		results:  make(map[capability.Handle]capability.PollResult[Out]),
		polls:    make(map[capability.Handle]int),
		released: make(map[capability.Handle]bool),
	}
}

// Invoke records the submission and schedules its result
func (m *MockCapability[In, Out]) Invoke(_ context.Context, in In) (capability.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.submissions)
	m.submissions = append(m.submissions, in)
	if m.RejectOn != nil {
		if err := m.RejectOn(n, in); err != nil {
			return "", &capability.RemoteSubmissionError{Operation: m.name, StatusCode: 422, Message: err.Error()}
		}
	}

	h := capability.Handle(fmt.Sprintf("%s-%d", m.name, n))
	if m.FailOn != nil {
		if reason := m.FailOn(n, in); reason != "" {
			m.results[h] = capability.Failed[Out](reason)
			return h, nil
		}
	}
	m.results[h] = capability.Done(m.Produce(n, in))
	return h, nil
}

// Poll reports the scheduled result once it is visible
func (m *MockCapability[In, Out]) Poll(_ context.Context, h capability.Handle) capability.PollResult[Out] {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.results[h]
	if !ok {
		return capability.Failed[Out](fmt.Sprintf("%s: unknown handle %s", m.name, h))
	}
	if m.Hold && !m.released[h] {
		return capability.Pending[Out]()
	}
	m.polls[h]++
	if m.polls[h] <= m.PendingPolls {
		return capability.Pending[Out]()
	}
	return res
}

// Decode maps a vendor status document to a PollResult
func (m *MockCapability[In, Out]) Decode(raw capability.RawResult) capability.PollResult[Out] {
	return capability.DecodeRaw[Out](m.name, raw)
}

// Release lets a held operation resolve
func (m *MockCapability[In, Out]) Release(h capability.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released[h] = true
}

// Forget drops a handle so polling it fails, as if the vendor lost it
func (m *MockCapability[In, Out]) Forget(h capability.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, h)
}

// Submissions returns a copy of every submitted input
func (m *MockCapability[In, Out]) Submissions() []In {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]In, len(m.submissions))
	copy(out, m.submissions)
	return out
}

// Calls returns the number of submissions
func (m *MockCapability[In, Out]) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

// LastHandle returns the handle of the latest submission
func (m *MockCapability[In, Out]) LastHandle() capability.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return capability.Handle(fmt.Sprintf("%s-%d", m.name, len(m.submissions)-1))
}

// Webhook renders the vendor's completion document for h, as it would be
// delivered to a callback URL
func (m *MockCapability[In, Out]) Webhook(h capability.Handle) capability.RawResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.results[h]
	if !ok {
		return capability.RawResult{ID: h.String(), Status: "failed", Error: "unknown handle"}
	}
	if res.IsFailed() {
		return capability.RawResult{ID: h.String(), Status: "failed", Error: res.Reason}
	}
	out, _ := json.Marshal(res.Value)
	return capability.RawResult{ID: h.String(), Status: "succeeded", Output: out}
}

// Vendors bundles a mock for every capability the pipeline uses
type Vendors struct {
	Narration     *MockCapability[capability.NarrationInput, capability.NarrationOutput]
	TalkingHead   *MockCapability[capability.TalkingHeadInput, capability.TalkingHeadOutput]
	Image         *MockCapability[capability.ImageInput, capability.ImageOutput]
	Transcription *MockCapability[capability.TranscriptionInput, capability.TranscriptionOutput]
	Render        *MockCapability[capability.RenderInput, capability.RenderOutput]

	durationsMu sync.Mutex
	durations   map[string]float64
}

// NewVendors creates mocks that always succeed. Narration lasts 0.5s per
// word unless SetDuration overrides it for a text.
func NewVendors() *Vendors {
	v := &Vendors{durations: make(map[string]float64)}

	v.Narration = NewMockCapability("narration", func(n int, in capability.NarrationInput) capability.NarrationOutput {
		return capability.NarrationOutput{
			AudioURL:        fmt.Sprintf("https://cdn.example.com/audio/%d.mp3", n),
			DurationSeconds: v.duration(in.Text),
		}
	})
	v.TalkingHead = NewMockCapability("talking_head", func(n int, _ capability.TalkingHeadInput) capability.TalkingHeadOutput {
		return capability.TalkingHeadOutput{VideoURL: fmt.Sprintf("https://cdn.example.com/talking/%d.mp4", n)}
	})
	v.Image = NewMockCapability("image", func(n int, _ capability.ImageInput) capability.ImageOutput {
		return capability.ImageOutput{ImageURL: fmt.Sprintf("https://cdn.example.com/image/%d.png", n)}
	})
	v.Transcription = NewMockCapability("transcription", func(_ int, _ capability.TranscriptionInput) capability.TranscriptionOutput {
		return capability.TranscriptionOutput{Words: []models.Word{
			{Text: "hello", Start: 0, End: 0.4},
			{Text: "world", Start: 0.4, End: 0.9},
		}}
	})
	v.Render = NewMockCapability("render", func(n int, in capability.RenderInput) capability.RenderOutput {
		var total float64
		for _, s := range in.Scenes {
			total += s.DurationSeconds
		}
		return capability.RenderOutput{
			VideoURL:        fmt.Sprintf("https://cdn.example.com/final/%d.mp4", n),
			DurationSeconds: total,
		}
	})
	return v
}

// SetDuration fixes the narration length of a text
func (v *Vendors) SetDuration(text string, seconds float64) {
	v.durationsMu.Lock()
	defer v.durationsMu.Unlock()
	v.durations[text] = seconds
}

func (v *Vendors) duration(text string) float64 {
	v.durationsMu.Lock()
	defer v.durationsMu.Unlock()
	if d, ok := v.durations[text]; ok {
		return d
	}
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	return float64(words) * 0.5
}

// Set exposes the mocks as a capability set
func (v *Vendors) Set() capability.Set {
	return capability.Set{
		Narration:     v.Narration,
		TalkingHead:   v.TalkingHead,
		Image:         v.Image,
		Transcription: v.Transcription,
		Render:        v.Render,
	}
}

// Package stream splits a streamed model reply into its thinking and answer phases.
//
// A reply looks like "<think>reasoning</think>answer", delivered in arbitrarily sized chunks.
// Splitter consumes the chunks one at a time and tells the renderer what to show for each of
// them; Run drives a Source through a Splitter.
package stream

import "strings"

const (
	OpenMarker  = "<think>"
	CloseMarker = "</think>"
)

// Phase identifies which part of the reply a piece of text belongs to.
type Phase int

const (
	PhaseThinking Phase = iota
	PhaseAnswer
)

func (p Phase) String() string {
	switch p {
	case PhaseThinking:
		return "thinking"
	case PhaseAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// Chunk is one fragment of model output. Boundaries carry no meaning.
type Chunk struct {
	Content string
}

// Update is what a single Feed asks the renderer to display.
type Update struct {
	Phase Phase
	// Text is the whole display text of Phase so far, not a delta.
	Text string
	// TerminatesPhase is set by the chunk that closed the thinking phase. Text then holds the
	// finished thinking text; answer text carried by the same chunk is available via Answer.
	TerminatesPhase bool
	// Suppressed means there is nothing new to paint for this chunk.
	Suppressed bool
}

// Reply is the assembled result of one stream.
type Reply struct {
	Thinking string
	Answer   string
	// Closed reports whether the closing marker was seen.
	Closed bool
}

// Content is the assistant turn content stored for this reply. Markers are not re-inserted.
func (r Reply) Content() string {
	return r.Thinking + r.Answer
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithRequireOpenMarker makes a stream that does not start with OpenMarker (ignoring leading
// whitespace) an answer-only stream. Without it everything before CloseMarker is thinking.
func WithRequireOpenMarker() Option {
	return func(s *Splitter) { s.requireOpen = true }
}

// Splitter is the two-state THINKING -> ANSWER machine. It is not safe for concurrent use;
// one Splitter serves one reply.
type Splitter struct {
	phase    Phase
	thinking strings.Builder // raw, markers included
	answer   strings.Builder
	closed   bool

	requireOpen bool
	gated       bool
}

// NewSplitter returns a Splitter in the thinking phase.
func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{phase: PhaseThinking}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the current phase.
func (s *Splitter) Phase() Phase {
	return s.phase
}

// Thinking returns the thinking text accumulated so far with markers stripped.
func (s *Splitter) Thinking() string {
	return FormatReasoning(s.thinking.String())
}

// Answer returns the answer text accumulated so far.
func (s *Splitter) Answer() string {
	return s.answer.String()
}

// Feed consumes one chunk.
func (s *Splitter) Feed(c Chunk) Update {
	if c.Content == "" {
		return Update{Phase: s.phase, Text: s.display(), Suppressed: true}
	}
	if s.phase == PhaseAnswer {
		s.answer.WriteString(c.Content)
		return Update{Phase: PhaseAnswer, Text: s.answer.String()}
	}

	prev := s.thinking.Len()
	s.thinking.WriteString(c.Content)

	if s.requireOpen && !s.gated {
		if u, decided := s.gate(); decided {
			return u
		}
	}

	buf := s.thinking.String()

	// Only the new fragment plus the bytes that could hold the start of a split marker are
	// searched; earlier content was already checked.
	if i := indexFrom(buf, CloseMarker, prev); i >= 0 {
		s.thinking.Reset()
		s.thinking.WriteString(buf[:i])
		s.answer.WriteString(buf[i+len(CloseMarker):])
		s.phase = PhaseAnswer
		s.closed = true
		return Update{Phase: PhaseThinking, Text: s.Thinking(), TerminatesPhase: true}
	}
	if indexFrom(buf, OpenMarker, prev) >= 0 {
		return Update{Phase: PhaseThinking, Suppressed: true}
	}
	return Update{Phase: PhaseThinking, Text: displayable(FormatReasoning(buf))}
}

// Finish ends the stream and returns the reply. A stream that never closed the thinking phase
// is all thinking and has no answer.
func (s *Splitter) Finish() Reply {
	if s.requireOpen && !s.gated && s.thinking.Len() > 0 {
		s.toAnswer()
	}
	return Reply{
		Thinking: s.Thinking(),
		Answer:   s.answer.String(),
		Closed:   s.closed,
	}
}

// display is the current display text of the active phase.
func (s *Splitter) display() string {
	switch {
	case s.phase == PhaseAnswer:
		return s.answer.String()
	case s.requireOpen && !s.gated:
		return ""
	default:
		return displayable(FormatReasoning(s.thinking.String()))
	}
}

// gate decides, once enough leading text arrived, whether the stream opens with OpenMarker.
func (s *Splitter) gate() (Update, bool) {
	lead := strings.TrimLeft(s.thinking.String(), " \t\r\n")
	switch {
	case lead == "" || (len(lead) < len(OpenMarker) && strings.HasPrefix(OpenMarker, lead)):
		return Update{Phase: PhaseThinking, Suppressed: true}, true
	case strings.HasPrefix(lead, OpenMarker):
		s.gated = true
		return Update{}, false
	default:
		s.toAnswer()
		return Update{Phase: PhaseAnswer, Text: s.answer.String()}, true
	}
}

func (s *Splitter) toAnswer() {
	s.gated = true
	s.answer.WriteString(s.thinking.String())
	s.thinking.Reset()
	s.phase = PhaseAnswer
}

// indexFrom finds marker in buf, looking only at matches that end after offset from.
func indexFrom(buf, marker string, from int) int {
	start := from - (len(marker) - 1)
	if start < 0 {
		start = 0
	}
	i := strings.Index(buf[start:], marker)
	if i < 0 {
		return -1
	}
	return start + i
}

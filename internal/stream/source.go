package stream

import (
	"context"
	"errors"
	"io"
)

// Source is a pull-based sequence of chunks. Next returns io.EOF once the sequence is
// exhausted. Close releases whatever backs the sequence and may be called more than once.
type Source interface {
	Next(ctx context.Context) (Chunk, error)
	Close() error
}

// Run pulls chunks from src until it is exhausted, feeding each one to sp and handing the
// resulting update to fn. Errors from src or fn are returned as they are, together with the
// reply assembled so far. src is closed before Run returns.
func Run(ctx context.Context, src Source, sp *Splitter, fn func(Update) error) (Reply, error) {
	defer src.Close()

	for {
		if err := ctx.Err(); err != nil {
			return sp.Finish(), err
		}
		c, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return sp.Finish(), nil
		}
		if err != nil {
			return sp.Finish(), err
		}
		u := sp.Feed(c)
		if fn == nil {
			continue
		}
		if err := fn(u); err != nil {
			return sp.Finish(), err
		}
	}
}

// sliceSource replays fixed chunks.
type sliceSource struct {
	chunks []Chunk
	pos    int
	err    error
	closed bool
}

// FromStrings returns a Source yielding one chunk per part.
func FromStrings(parts ...string) Source {
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{Content: p}
	}
	return &sliceSource{chunks: chunks}
}

// FailingAfter returns a Source yielding parts and then err instead of io.EOF, the way a
// connection dropped mid-stream looks to the consumer.
func FailingAfter(err error, parts ...string) Source {
	s := FromStrings(parts...).(*sliceSource)
	s.err = err
	return s
}

func (s *sliceSource) Next(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if s.closed {
		return Chunk{}, io.EOF
	}
	if s.pos >= len(s.chunks) {
		if s.err != nil {
			return Chunk{}, s.err
		}
		return Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

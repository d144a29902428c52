package multimodal

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"
)

func testPool(concurrency int) *Multimodal {
	sessions := make(chan *Session, concurrency)
	for range concurrency {
		sessions <- &Session{closed: true}
	}

	return &Multimodal{
		concurrency: concurrency,
		sessions:    sessions,
	}
}

func TestUnloadWithCallsInFlight(t *testing.T) {
	mm := testPool(2)

	f := func(s *Session) (struct{}, error) {
		return struct{}{}, nil
	}

	var g errgroup.Group
	for range 32 {
		g.Go(func() error {
			withSession(context.Background(), mm, f)
			return nil
		})
	}

	mm.Unload()

	if err := g.Wait(); err != nil {
		t.Fatalf("error: %v", err)
	}

	if _, err := withSession(context.Background(), mm, f); err == nil {
		t.Fatal("expected an error after Unload")
	}
}

func TestUnloadIdempotent(t *testing.T) {
	mm := testPool(1)

	mm.Unload()
	mm.Unload()

	f := func(s *Session) (struct{}, error) {
		return struct{}{}, nil
	}

	if _, err := withSession(context.Background(), mm, f); err == nil {
		t.Fatal("expected an error after Unload")
	}
}

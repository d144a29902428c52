package multimodal

import (
	"context"
	"fmt"
	"sync/atomic"
)

type sessionFunc[T any] func(s *Session) (T, error)

// withSession leases a session from the pool, runs f against it, and returns
// the session to the pool. Leasing is what serializes calls: a session is
// never executing more than one operation at a time.
func withSession[T any](ctx context.Context, mm *Multimodal, f sessionFunc[T]) (T, error) {
	var zero T

	if atomic.LoadUint32(&mm.closed) == 1 {
		return zero, fmt.Errorf("Multimodal has been unloaded")
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()

	case session, ok := <-mm.sessions:
		if !ok {
			return zero, fmt.Errorf("Multimodal has been unloaded")
		}

		mm.wg.Add(1)

		defer func() {
			mm.sessions <- session
			mm.wg.Done()
		}()

		return f(session)
	}
}

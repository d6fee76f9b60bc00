package dashboard

import (
	"errors"
	"sync/atomic"
)

// ErrStale is returned for a response that a newer request has superseded.
var ErrStale = errors.New("response superseded by a newer request")

// Sequence hands out generation numbers so only the latest request may apply its
// response: last requested wins, not last resolved.
type Sequence struct {
	n atomic.Uint64
}

func (s *Sequence) Next() uint64 {
	return s.n.Add(1)
}

func (s *Sequence) IsLatest(gen uint64) bool {
	return s.n.Load() == gen
}

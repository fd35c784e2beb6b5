package id

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/oklog/ulid/v2"
)

// entropy is shared by all Synthesize calls; ulid.Monotonic is not safe for
// concurrent use on its own.
var entropy io.Reader = &lockedReader{r: ulid.Monotonic(rand.Reader, 0)}

type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}

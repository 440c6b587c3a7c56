package lexicon

import (
	"sync/atomic"
	"time"

	"github.com/seseseee/discourse-insight/internal/models"
)

// Lexicon is one immutable label→terms mapping produced by a rebuild.
type Lexicon struct {
	Terms   map[models.Label][]string
	BuiltAt time.Time
	JobID   string
}

// Snapshot holds the live lexicon behind an atomic pointer. Classification
// readers always observe a complete lexicon; a rebuild replaces the whole
// pointer in one step.
type Snapshot struct {
	ptr atomic.Pointer[Lexicon]
}

func NewSnapshot() *Snapshot {
	s := &Snapshot{}
	s.ptr.Store(&Lexicon{Terms: map[models.Label][]string{}})
	return s
}

// Current returns the live lexicon. Never nil.
func (s *Snapshot) Current() *Lexicon {
	return s.ptr.Load()
}

// Swap installs a freshly built lexicon.
func (s *Snapshot) Swap(l *Lexicon) {
	s.ptr.Store(l)
}

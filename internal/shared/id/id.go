// Package id generates the identifiers used for session directories and
// injection journal entries.
//
// Identifiers are ULIDs: lexicographically sortable by creation time, so a
// plain directory listing of the session root is already chronological.
// Injection IDs carry an "inj_" prefix to keep journal lines greppable.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SessionID names one wrapped-process session and its log directory.
type SessionID string

// InjectionID names one generation request in the injection journal.
type InjectionID string

const InjectionPrefix = "inj"

// Generator produces monotonic ULIDs. IDs generated within the same
// millisecond still sort in generation order.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: ulid.Monotonic(entropy, 0),
		now:     time.Now,
	}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

func (g *Generator) Session() SessionID {
	return SessionID(g.Generate().String())
}

func (g *Generator) Injection() InjectionID {
	return InjectionID(fmt.Sprintf("%s_%s", InjectionPrefix, g.Generate()))
}

func NewSessionID() SessionID {
	return Default().Session()
}

func NewInjectionID() InjectionID {
	return Default().Injection()
}

func (id SessionID) String() string   { return string(id) }
func (id InjectionID) String() string { return string(id) }

// Parse extracts the ULID from a bare or prefixed identifier.
func Parse(id string) (ulid.ULID, error) {
	if i := strings.LastIndexByte(id, '_'); i >= 0 {
		id = id[i+1:]
	}
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	return u, nil
}

// IsValid reports whether id is a bare or prefixed ULID.
func IsValid(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// Timestamp returns the creation time encoded in id.
func Timestamp(id string) (time.Time, error) {
	u, err := Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}

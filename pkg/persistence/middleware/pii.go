package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/paisatax/taxgraph/pkg/domain"
	"github.com/paisatax/taxgraph/pkg/ports"
)

// Mask replaces the value of every masked node.
const Mask = "***"

// DefaultPIIPatterns match the node ids that usually carry identity data
// on a return.
var DefaultPIIPatterns = []string{`(?i)(^|[._])ssn($|[._])`, `(?i)(^|[._])(tin|itin|ein)($|[._])`, `(?i)name`, `(?i)address`, `(?i)phone`, `(?i)email`}

type piiMiddleware struct {
	next     ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks the values of nodes
// whose id matches one of the patterns before they reach the store. The
// original values are not recoverable from the store.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, key string, sess *domain.Session) error {
	masked := *sess
	masked.State = MaskState(sess.State, m.patterns)
	return m.next.Save(ctx, key, &masked)
}

func (m *piiMiddleware) Load(ctx context.Context, key string) (*domain.Session, error) {
	return m.next.Load(ctx, key)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// MaskState returns a copy of state with the values of matching nodes
// replaced by Mask. Absent values stay absent.
func MaskState(state *domain.State, patterns []*regexp.Regexp) *domain.State {
	nodes := state.Snapshots()
	for id, snap := range nodes {
		if snap.Value == nil {
			continue
		}
		for _, p := range patterns {
			if p.MatchString(id) {
				snap.Value = Mask
				nodes[id] = snap
				break
			}
		}
	}
	return domain.NewState(nodes)
}

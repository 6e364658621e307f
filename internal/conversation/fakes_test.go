package conversation

import (
	"context"
	"sync"

	"github.com/matheus3301/imsg/internal/store"
)

type fakeSource struct {
	convRows []store.ConversationRow
	msgRows  []store.MessageRow
	err      error

	mu      sync.Mutex
	queries []store.ThreadQuery
	allSvc  []bool
}

func (f *fakeSource) ConversationRows(_ context.Context, allServices bool) ([]store.ConversationRow, error) {
	f.mu.Lock()
	f.allSvc = append(f.allSvc, allServices)
	f.mu.Unlock()
	return f.convRows, f.err
}

func (f *fakeSource) RecentMessages(_ context.Context, q store.ThreadQuery) ([]store.MessageRow, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.msgRows, f.err
}

type fakeNames struct {
	mu       sync.Mutex
	names    map[string]string
	resolved []string
}

func newFakeNames(kv ...string) *fakeNames {
	n := &fakeNames{names: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		n.names[kv[i]] = kv[i+1]
	}
	return n
}

func (n *fakeNames) Name(id string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.names[id]
	return v, ok
}

func (n *fakeNames) Resolve(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, id)
}

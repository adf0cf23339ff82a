// Package service coordinates chat sessions: the guided dialogue, the chat
// log store and the completion provider.
package service

import (
	"sync"

	"github.com/phantasma-ai/specky/internal/dialogue"
	"github.com/phantasma-ai/specky/internal/model"
)

// registry tracks the dialogue machine of every session touched since
// startup and the set of sessions with a completion in flight. Both live
// under one mutex so status reads never race a check-and-set.
type registry struct {
	mu       sync.Mutex
	machines map[string]*dialogue.Machine
	pending  map[string]struct{}
	opts     []dialogue.MachineOption
}

func newRegistry(opts ...dialogue.MachineOption) *registry {
	return &registry{
		machines: make(map[string]*dialogue.Machine),
		pending:  make(map[string]struct{}),
		opts:     opts,
	}
}

// acquire marks id as pending. It returns false if it already was.
func (r *registry) acquire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.pending[id]; busy {
		return false
	}
	r.pending[id] = struct{}{}
	return true
}

func (r *registry) release(id string) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

func (r *registry) isPending(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, busy := r.pending[id]
	return busy
}

// machine returns the session's dialogue machine, restoring it from turns
// the first time the session is seen.
func (r *registry) machine(id string, turns []model.Turn) *dialogue.Machine {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[id]
	if !ok {
		m = dialogue.NewMachine(turns, r.opts...)
		r.machines[id] = m
	}
	return m
}

// state returns the session's dialogue state without registering a machine
// for sessions that have not sent anything yet.
func (r *registry) state(id string, turns []model.Turn) dialogue.State {
	r.mu.Lock()
	m, ok := r.machines[id]
	r.mu.Unlock()

	if ok {
		return m.State()
	}
	return dialogue.Restore(turns).State
}

package workflow

import "github.com/adronaut/strategist-core/pkg/domain"

// subscriberBuffer bounds how far a slow reader may lag before events are
// dropped on its channel. The journal in the run and the persistence
// collaborator remain complete; the stream is a live view, not the record
// of truth.
const subscriberBuffer = 64

// Subscribe returns a channel delivering run runID's StepEvents in
// state-transition order, starting with a replay of everything already
// journaled, and a cancel function releasing the subscription. The channel
// closes when the run reaches COMPLETED or FAILED, matching the events()
// contract in spec.md §6. Subscribing to an unknown run returns a channel
// that closes immediately.
func (e *Engine) Subscribe(runID string) (<-chan domain.StepEvent, func()) {
	ch := make(chan domain.StepEvent, subscriberBuffer)

	e.mu.Lock()
	run, ok := e.runs[runID]
	if !ok {
		e.mu.Unlock()
		close(ch)
		return ch, func() {}
	}

	replay := append([]domain.StepEvent(nil), run.Events...)
	terminal := run.Status == domain.RunCompleted || run.Status == domain.RunFailed
	if !terminal {
		e.subscribers[runID] = append(e.subscribers[runID], ch)
	}
	e.mu.Unlock()

	for _, event := range replay {
		select {
		case ch <- event:
		default:
		}
	}
	if terminal {
		close(ch)
		return ch, func() {}
	}

	cancel := func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		subs := e.subscribers[runID]
		for i, sub := range subs {
			if sub == ch {
				e.subscribers[runID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// broadcast fans event out to every live subscriber of runID without
// blocking the step loop; a full subscriber buffer drops the event for
// that subscriber only.
func (e *Engine) broadcast(runID string, event domain.StepEvent) {
	e.mu.RLock()
	subs := append([]chan domain.StepEvent(nil), e.subscribers[runID]...)
	e.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// closeSubscribers closes every subscriber channel for runID exactly once,
// called when the run reaches a terminal state.
func (e *Engine) closeSubscribers(runID string) {
	e.mu.Lock()
	subs := e.subscribers[runID]
	delete(e.subscribers, runID)
	e.mu.Unlock()

	for _, ch := range subs {
		close(ch)
	}
}

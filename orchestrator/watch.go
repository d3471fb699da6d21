package orchestrator

import (
	"context"

	"github.com/zeu5/rps-arena/types"
)

// watcher streams trial infos in publication order, queueing for slow readers
type watcher struct {
	filter map[types.TrialState]bool
	in     chan types.TrialInfo
	out    chan types.TrialInfo
	done   <-chan struct{}
}

func newWatcher(ctx context.Context, states []types.TrialState) *watcher {
	w := &watcher{
		in:   make(chan types.TrialInfo, 16),
		out:  make(chan types.TrialInfo),
		done: ctx.Done(),
	}
	if len(states) > 0 {
		w.filter = make(map[types.TrialState]bool)
		for _, s := range states {
			w.filter[s] = true
		}
	}
	return w
}

func (w *watcher) matches(info types.TrialInfo) bool {
	return w.filter == nil || w.filter[info.State]
}

func (w *watcher) publish(info types.TrialInfo) {
	if !w.matches(info) {
		return
	}
	select {
	case w.in <- info:
	case <-w.done:
	}
}

func (w *watcher) pump() {
	defer close(w.out)
	queue := make([]types.TrialInfo, 0)
	for {
		var out chan types.TrialInfo
		var next types.TrialInfo
		if len(queue) > 0 {
			out = w.out
			next = queue[0]
		}
		select {
		case <-w.done:
			return
		case info := <-w.in:
			queue = append(queue, info)
		case out <- next:
			queue = queue[1:]
		}
	}
}

// WatchTrials replays the current state of the trials matching the states (all when empty)
// and then streams every state transition until ctx is done
func (o *Orchestrator) WatchTrials(ctx context.Context, states ...types.TrialState) <-chan types.TrialInfo {
	w := newWatcher(ctx, states)
	go w.pump()

	o.lock.Lock()
	current := o.sortedTrialsLocked()
	o.watchers[w] = struct{}{}
	for _, t := range current {
		w.publish(t.info())
	}
	o.lock.Unlock()

	go func() {
		<-ctx.Done()
		o.lock.Lock()
		delete(o.watchers, w)
		o.lock.Unlock()
	}()
	return w.out
}

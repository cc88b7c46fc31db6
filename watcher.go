package gmxtracker

import (
	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
	"github.com/archon-research/gmx-tracker/internal/services/watcher"
)

// Watcher is a running position poll loop. Change events arrive on Changes
// until Stop is called or the failure cap is hit, after which the channel is
// closed and Err reports the terminal error, if any.
type Watcher struct {
	service *watcher.Service
	heads   outbound.HeadSubscriber
}

// Changes returns the change event channel.
func (w *Watcher) Changes() <-chan gmx.Change {
	return w.service.Changes()
}

// Stop terminates the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.service.Stop()
	if w.heads != nil {
		w.heads.Close()
	}
}

// Err returns the terminal error after the change channel closes, or nil for
// a clean stop.
func (w *Watcher) Err() error {
	return w.service.Err()
}

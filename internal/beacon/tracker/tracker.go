// Package tracker wires page notifications to beacon dispatches.
//
// Three independent subscriptions are registered on a Source:
// every load dispatches "page_view", while scroll and click dispatch only
// on their first occurrence and are latched for the rest of the session.
package tracker

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lugx/beacon/pkg/types"
)

// Source delivers page notifications to subscribed handlers
type Source interface {
	OnLoad(handler func())
	OnScroll(handler func())
	OnClick(handler func())
}

// Dispatcher sends one event record; implementations must not block the caller
type Dispatcher interface {
	Dispatch(eventType string)
}

// Tracker owns the per-session latches for one page session
type Tracker struct {
	dispatcher Dispatcher
	logger     *zap.Logger

	scrollTracked atomic.Bool
	clickTracked  atomic.Bool
}

// New creates a tracker for a single page session
func New(dispatcher Dispatcher, logger *zap.Logger) *Tracker {
	return &Tracker{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Attach subscribes the load, scroll and click handlers to src
func (t *Tracker) Attach(src Source) {
	src.OnLoad(t.HandleLoad)
	src.OnScroll(t.HandleScroll)
	src.OnClick(t.HandleClick)
}

// HandleLoad dispatches a page view. Unguarded: the source fires load once per lifecycle.
func (t *Tracker) HandleLoad() {
	t.dispatcher.Dispatch(types.EventTypePageView)
}

// HandleScroll dispatches "scroll" on the first call only
func (t *Tracker) HandleScroll() {
	if !t.scrollTracked.CompareAndSwap(false, true) {
		return
	}
	t.dispatcher.Dispatch(types.EventTypeScroll)
	t.logger.Debug("Scroll tracked, further scroll events ignored")
}

// HandleClick dispatches "click" on the first call only
func (t *Tracker) HandleClick() {
	if !t.clickTracked.CompareAndSwap(false, true) {
		return
	}
	t.dispatcher.Dispatch(types.EventTypeClick)
	t.logger.Debug("Click tracked, further click events ignored")
}

// ScrollTracked reports whether the scroll latch is set
func (t *Tracker) ScrollTracked() bool {
	return t.scrollTracked.Load()
}

// ClickTracked reports whether the click latch is set
func (t *Tracker) ClickTracked() bool {
	return t.clickTracked.Load()
}

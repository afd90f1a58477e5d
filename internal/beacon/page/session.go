package page

import (
	"sync"
)

// Session is an in-process page: a location plus load, scroll and click notifications.
// Handlers run synchronously on the goroutine that fires the notification.
type Session struct {
	mu     sync.Mutex
	path   string
	loaded bool

	loadHandlers   []func()
	scrollHandlers []func()
	clickHandlers  []func()
}

// NewSession creates a session positioned at path
func NewSession(path string) *Session {
	if path == "" {
		path = "/"
	}
	return &Session{path: path}
}

// Path returns the current document path
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Navigate changes the current path without starting a new lifecycle (history push)
func (s *Session) Navigate(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

func (s *Session) OnLoad(handler func()) {
	s.mu.Lock()
	s.loadHandlers = append(s.loadHandlers, handler)
	s.mu.Unlock()
}

func (s *Session) OnScroll(handler func()) {
	s.mu.Lock()
	s.scrollHandlers = append(s.scrollHandlers, handler)
	s.mu.Unlock()
}

func (s *Session) OnClick(handler func()) {
	s.mu.Lock()
	s.clickHandlers = append(s.clickHandlers, handler)
	s.mu.Unlock()
}

// Load fires the load notification. It fires at most once per session;
// later calls return false and notify nobody.
func (s *Session) Load() bool {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return false
	}
	s.loaded = true
	handlers := append([]func(){}, s.loadHandlers...)
	s.mu.Unlock()

	notify(handlers)
	return true
}

// Loaded reports whether Load has fired
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Scroll fires a scroll notification
func (s *Session) Scroll() {
	s.mu.Lock()
	handlers := append([]func(){}, s.scrollHandlers...)
	s.mu.Unlock()

	notify(handlers)
}

// Click fires a document-wide click notification
func (s *Session) Click() {
	s.mu.Lock()
	handlers := append([]func(){}, s.clickHandlers...)
	s.mu.Unlock()

	notify(handlers)
}

func notify(handlers []func()) {
	for _, h := range handlers {
		h()
	}
}

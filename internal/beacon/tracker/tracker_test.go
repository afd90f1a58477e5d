package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/lugx/beacon/pkg/types"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingDispatcher) Dispatch(eventType string) {
	r.mu.Lock()
	r.calls = append(r.calls, eventType)
	r.mu.Unlock()
}

func (r *recordingDispatcher) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == eventType {
			n++
		}
	}
	return n
}

// manualSource keeps handlers so tests can fire them directly
type manualSource struct {
	load, scroll, click []func()
}

func (m *manualSource) OnLoad(h func())   { m.load = append(m.load, h) }
func (m *manualSource) OnScroll(h func()) { m.scroll = append(m.scroll, h) }
func (m *manualSource) OnClick(h func())  { m.click = append(m.click, h) }

func fire(handlers []func()) {
	for _, h := range handlers {
		h()
	}
}

func TestAttach_SubscribesThreeHandlers(t *testing.T) {
	src := &manualSource{}
	New(&recordingDispatcher{}, zap.NewNop()).Attach(src)

	assert.Len(t, src.load, 1)
	assert.Len(t, src.scroll, 1)
	assert.Len(t, src.click, 1)
}

func TestHandleLoad_DispatchesPageViewEachCall(t *testing.T) {
	d := &recordingDispatcher{}
	tr := New(d, zap.NewNop())

	tr.HandleLoad()
	assert.Equal(t, 1, d.count(types.EventTypePageView))

	// load is not latched; the source guarantees a single load per lifecycle
	tr.HandleLoad()
	assert.Equal(t, 2, d.count(types.EventTypePageView))
}

func TestHandleScroll_LatchesAfterFirst(t *testing.T) {
	for _, n := range []int{1, 2, 10} {
		d := &recordingDispatcher{}
		tr := New(d, zap.NewNop())

		for i := 0; i < n; i++ {
			tr.HandleScroll()
		}

		assert.Equal(t, 1, d.count(types.EventTypeScroll), "n=%d", n)
		assert.True(t, tr.ScrollTracked())
		assert.False(t, tr.ClickTracked())
	}
}

func TestHandleClick_LatchesAfterFirst(t *testing.T) {
	for _, n := range []int{1, 3, 25} {
		d := &recordingDispatcher{}
		tr := New(d, zap.NewNop())

		for i := 0; i < n; i++ {
			tr.HandleClick()
		}

		assert.Equal(t, 1, d.count(types.EventTypeClick), "n=%d", n)
		assert.True(t, tr.ClickTracked())
		assert.False(t, tr.ScrollTracked())
	}
}

func TestLatches_AreIndependent(t *testing.T) {
	d := &recordingDispatcher{}
	src := &manualSource{}
	tr := New(d, zap.NewNop())
	tr.Attach(src)

	fire(src.click)
	fire(src.scroll)
	fire(src.click)
	fire(src.load)
	fire(src.scroll)

	assert.Equal(t, []string{"click", "scroll", "page_view"}, d.calls)
}

func TestLatches_PerTrackerInstance(t *testing.T) {
	d := &recordingDispatcher{}
	first := New(d, zap.NewNop())
	second := New(d, zap.NewNop())

	first.HandleClick()
	second.HandleClick()

	assert.Equal(t, 2, d.count(types.EventTypeClick))
}

func TestLatches_ConcurrentTriggers(t *testing.T) {
	d := &recordingDispatcher{}
	tr := New(d, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); tr.HandleScroll() }()
		go func() { defer wg.Done(); tr.HandleClick() }()
	}
	wg.Wait()

	assert.Equal(t, 1, d.count(types.EventTypeScroll))
	assert.Equal(t, 1, d.count(types.EventTypeClick))
}

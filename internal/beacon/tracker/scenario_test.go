package tracker_test

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/lugx/beacon/internal/beacon/dispatcher"
	"github.com/lugx/beacon/internal/beacon/page"
	"github.com/lugx/beacon/internal/beacon/tracker"
	"github.com/lugx/beacon/pkg/types"
)

// collectorStub accepts POST /track in memory and keeps the decoded records
type collectorStub struct {
	mu      sync.Mutex
	records []types.EventRecord
	status  int
	ln      *fasthttputil.InmemoryListener
	server  *fasthttp.Server
}

func startCollectorStub(status int) *collectorStub {
	stub := &collectorStub{
		status: status,
		ln:     fasthttputil.NewInmemoryListener(),
	}
	stub.server = &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		var rec types.EventRecord
		if err := json.Unmarshal(ctx.PostBody(), &rec); err == nil && string(ctx.Path()) == types.TrackPath {
			stub.mu.Lock()
			stub.records = append(stub.records, rec)
			stub.mu.Unlock()
		}
		ctx.SetStatusCode(stub.status)
		ctx.SetBodyString("ok")
	}}
	go func() { _ = stub.server.Serve(stub.ln) }()
	return stub
}

func (s *collectorStub) client() *fasthttp.Client {
	return &fasthttp.Client{Dial: func(string) (net.Conn, error) { return s.ln.Dial() }}
}

func (s *collectorStub) received() []types.EventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.EventRecord(nil), s.records...)
}

func (s *collectorStub) countOf(eventType string) int {
	n := 0
	for _, r := range s.received() {
		if r.EventType == eventType {
			n++
		}
	}
	return n
}

var _ = Describe("Page session tracking", func() {
	var (
		stub    *collectorStub
		session *page.Session
		beacon  *dispatcher.Dispatcher
	)

	settle := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(beacon.Wait(ctx)).To(Succeed())
	}

	BeforeEach(func() {
		stub = startCollectorStub(fasthttp.StatusCreated)
		DeferCleanup(func() { _ = stub.server.Shutdown() })

		session = page.NewSession("/home")
		beacon = dispatcher.New("http://collector", session, zap.NewNop(), dispatcher.WithClient(stub.client()))
		tracker.New(beacon, zap.NewNop()).Attach(session)
	})

	It("sends one page_view on load", func() {
		session.Load()
		settle()

		Expect(stub.received()).To(ConsistOf(types.EventRecord{EventType: "page_view", PageURL: "/home"}))
	})

	It("sends one scroll no matter how many scroll notifications arrive", func() {
		for i := 0; i < 5; i++ {
			session.Scroll()
		}
		settle()

		Expect(stub.countOf(types.EventTypeScroll)).To(Equal(1))
	})

	It("sends one click no matter how many clicks arrive", func() {
		session.Click()
		session.Click()
		session.Click()
		settle()

		Expect(stub.countOf(types.EventTypeClick)).To(Equal(1))
	})

	It("ignores repeated load notifications within the lifecycle", func() {
		session.Load()
		session.Load()
		settle()

		Expect(stub.countOf(types.EventTypePageView)).To(Equal(1))
	})

	It("runs the full load, scroll, click scenario with three posts", func() {
		session.Load()
		settle()
		Expect(stub.received()).To(HaveLen(1))

		session.Scroll()
		session.Scroll()
		settle()
		Expect(stub.countOf(types.EventTypeScroll)).To(Equal(1))

		session.Click()
		session.Click()
		session.Click()
		settle()
		Expect(stub.countOf(types.EventTypeClick)).To(Equal(1))

		Expect(stub.received()).To(HaveLen(3))
		for _, rec := range stub.received() {
			Expect(rec.PageURL).To(Equal("/home"))
		}
	})

	It("reports the path current at the moment of each dispatch", func() {
		session.Load()
		session.Navigate("/shop")
		session.Click()
		settle()

		Expect(stub.received()).To(ConsistOf(
			types.EventRecord{EventType: "page_view", PageURL: "/home"},
			types.EventRecord{EventType: "click", PageURL: "/shop"},
		))
	})

	Context("when the collector rejects events", func() {
		BeforeEach(func() {
			stub.status = fasthttp.StatusInternalServerError
		})

		It("still latches and never surfaces the failure", func() {
			Expect(func() {
				session.Load()
				session.Scroll()
				session.Scroll()
			}).NotTo(Panic())
			settle()

			Expect(stub.received()).To(HaveLen(2))
		})
	})
})

package stakeout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func jsonQuery(t *testing.T, target string) Query {
	t.Helper()
	q, err := NewQuery(ModeJSON, target, WithLocator("$.data.status"))
	if err != nil {
		t.Fatalf("NewQuery() error = %v", err)
	}
	return q
}

// runStakeout starts sk in a goroutine and returns a cancel function that
// stops it and waits for Start to return.
func runStakeout(t *testing.T, sk *Stakeout) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sk.Start(ctx); err != nil {
			t.Errorf("Start() error = %v", err)
		}
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("Start() did not return after cancel")
		}
	}
}

func waitForMessage(t *testing.T, sender *fakeSender, timeout time.Duration) string {
	t.Helper()
	select {
	case msg := <-sender.got:
		return msg
	case <-time.After(timeout):
		t.Fatal("no notification delivered in time")
		return ""
	}
}

func TestStakeout_NotifiesOnFirstMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"status": "available"}}`))
	}))
	defer server.Close()

	sender := newFakeSender("hook")
	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Hour),
		WithRequestDelay(0),
		WithSender(sender),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runStakeout(t, sk)
	defer stop()

	msg := waitForMessage(t, sender, 5*time.Second)
	if !strings.Contains(msg, "match on "+server.URL) {
		t.Errorf("message = %q, want a match notification for %s", msg, server.URL)
	}
	if !strings.Contains(msg, `"available"`) {
		t.Errorf("message = %q, want the target value quoted", msg)
	}
}

func TestStakeout_TransitionAndClear(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "sold_out"
		if hits.Add(1) == 2 {
			status = "available"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"status": "` + status + `"}}`))
	}))
	defer server.Close()

	sender := newFakeSender("hook")
	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Second),
		WithRequestDelay(0),
		WithSender(sender),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runStakeout(t, sk)
	defer stop()

	// cycle 1 observes sold_out: no notification. cycle 2 flips to
	// available, cycle 3 back to sold_out.
	matched := waitForMessage(t, sender, 10*time.Second)
	if !strings.Contains(matched, "match on") {
		t.Errorf("first message = %q, want a match notification", matched)
	}

	cleared := waitForMessage(t, sender, 10*time.Second)
	if !strings.Contains(cleared, "match cleared") {
		t.Errorf("second message = %q, want a cleared notification", cleared)
	}
	if !strings.Contains(cleared, `"sold_out"`) {
		t.Errorf("second message = %q, want the observed value", cleared)
	}
}

func TestStakeout_SteadyStateDoesNotRenotify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"status": "available"}}`))
	}))
	defer server.Close()

	var checks atomic.Int32
	cyclesDone := make(chan struct{}, 8)

	sender := newFakeSender("hook")
	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Second),
		WithRequestDelay(0),
		WithSender(sender),
		WithCheckCallback(func(cs CheckStatus) {
			checks.Add(1)
			cyclesDone <- struct{}{}
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runStakeout(t, sk)

	for i := 0; i < 3; i++ {
		select {
		case <-cyclesDone:
		case <-time.After(10 * time.Second):
			t.Fatalf("only %d cycles completed", i)
		}
	}
	stop()

	if got := len(sender.got); got != 1 {
		t.Errorf("notifications = %d over %d cycles, want exactly 1", got, checks.Load())
	}
}

func TestStakeout_FetchFailurePreservesState(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"status": "available"}}`))
	}))
	defer server.Close()

	var mu sync.Mutex
	var statuses []CheckStatus
	cyclesDone := make(chan struct{}, 8)

	sender := newFakeSender("hook")
	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Second),
		WithRequestDelay(0),
		WithSender(sender),
		WithCheckCallback(func(cs CheckStatus) {
			mu.Lock()
			statuses = append(statuses, cs)
			mu.Unlock()
			cyclesDone <- struct{}{}
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runStakeout(t, sk)

	for i := 0; i < 3; i++ {
		select {
		case <-cyclesDone:
		case <-time.After(10 * time.Second):
			t.Fatalf("only %d cycles completed", i)
		}
	}
	stop()

	mu.Lock()
	defer mu.Unlock()

	if statuses[1].Err == nil {
		t.Error("cycle 2 Err = nil, want fetch failure")
	}
	if !statuses[1].State.LastMatched {
		t.Error("cycle 2 state lost LastMatched, want preserved across fetch failure")
	}

	// only the first cycle's transition notifies; the recovery cycle sees
	// an unchanged matched state
	if got := len(sender.got); got != 1 {
		t.Errorf("notifications = %d, want exactly 1", got)
	}
}

func TestStakeout_StartupNotice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"status": "sold_out"}}`))
	}))
	defer server.Close()

	sender := newFakeSender("hook")
	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Hour),
		WithRequestDelay(0),
		WithSender(sender),
		WithStartupNotice(),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runStakeout(t, sk)
	defer stop()

	msg := waitForMessage(t, sender, 5*time.Second)
	if !strings.Contains(msg, "stakeout started") {
		t.Errorf("message = %q, want a startup notice", msg)
	}
	if !strings.Contains(msg, server.URL) {
		t.Errorf("message = %q, want the watched URL", msg)
	}
}

func TestStakeout_ReportCallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"status": "available"}}`))
	}))
	defer server.Close()

	reports := make(chan DeliveryReport, 4)

	sender := newFakeSender("hook")
	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Hour),
		WithRequestDelay(0),
		WithSender(sender),
		WithReportCallback(func(r DeliveryReport) { reports <- r }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runStakeout(t, sk)
	defer stop()

	select {
	case report := <-reports:
		if report.ID == "" {
			t.Error("report.ID is empty")
		}
		if report.Succeeded() != 1 {
			t.Errorf("Succeeded() = %d, want 1", report.Succeeded())
		}
		if len(report.Results) != 1 || report.Results[0].Channel != "hook" {
			t.Errorf("Results = %+v, want one entry for hook", report.Results)
		}
		if report.Results[0].Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", report.Results[0].Attempts)
		}
		if !report.Event.Matched {
			t.Error("Event.Matched = false, want true")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery report in time")
	}
}

func TestStakeout_HTMLWatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><div>Status: In Stock</div></body></html>`))
	}))
	defer server.Close()

	q, err := NewQuery(ModeHTML, "In Stock")
	if err != nil {
		t.Fatalf("NewQuery() error = %v", err)
	}

	sender := newFakeSender("hook")
	sk, err := New(
		WithURL(server.URL),
		WithQuery(q),
		WithInterval(time.Hour),
		WithRequestDelay(0),
		WithSender(sender),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runStakeout(t, sk)
	defer stop()

	msg := waitForMessage(t, sender, 5*time.Second)
	if !strings.Contains(msg, `"In Stock" found`) {
		t.Errorf("message = %q, want an In Stock match", msg)
	}
}

// slowSender signals when a send begins and takes a fixed time to finish,
// deliberately ignoring context cancellation.
type slowSender struct {
	name      string
	delay     time.Duration
	started   chan struct{}
	startOnce sync.Once
	delivered atomic.Bool
}

func (s *slowSender) Name() string { return s.name }

func (s *slowSender) Send(ctx context.Context, message string) error {
	s.startOnce.Do(func() { close(s.started) })
	time.Sleep(s.delay)
	s.delivered.Store(true)
	return nil
}

func TestStakeout_ShutdownWaitsForInFlightDispatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"status": "available"}}`))
	}))
	defer server.Close()

	sender := &slowSender{
		name:    "slow",
		delay:   400 * time.Millisecond,
		started: make(chan struct{}),
	}

	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Hour),
		WithRequestDelay(0),
		WithSender(sender),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sk.Start(ctx); err != nil {
			t.Errorf("Start() error = %v", err)
		}
	}()

	select {
	case <-sender.started:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch never began")
	}

	// cancel while the send is in flight; shutdown must wait it out
	cancel()

	select {
	case <-done:
		if !sender.delivered.Load() {
			t.Error("Start() returned before the in-flight send finished")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestStakeout_CancelMidFetchChangesNothing(t *testing.T) {
	fetchStarted := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case fetchStarted <- struct{}{}:
		default:
		}
		// hold the response open until the watcher gives up
		<-r.Context().Done()
	}))
	defer server.Close()

	var mu sync.Mutex
	var statuses []CheckStatus

	sender := newFakeSender("hook")
	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Hour),
		WithRequestDelay(0),
		WithSender(sender),
		WithCheckCallback(func(cs CheckStatus) {
			mu.Lock()
			statuses = append(statuses, cs)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sk.Start(ctx); err != nil {
			t.Errorf("Start() error = %v", err)
		}
	}()

	select {
	case <-fetchStarted:
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never began")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}

	if got := len(sender.got); got != 0 {
		t.Errorf("notifications = %d for an abandoned cycle, want 0", got)
	}

	// the abandoned cycle may or may not surface as a failed check, but it
	// must never carry a match or mutate tracked state
	mu.Lock()
	defer mu.Unlock()
	for _, cs := range statuses {
		if cs.Err == nil {
			t.Errorf("callback saw a successful check %+v, want only fetch failures", cs)
		}
		if cs.State.LastMatched || !cs.State.LastTransitionAt.IsZero() {
			t.Errorf("state mutated by abandoned cycle: %+v", cs.State)
		}
	}
}

func TestStakeout_RetriesTransientSendFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"status": "available"}}`))
	}))
	defer server.Close()

	var sendCalls atomic.Int32
	sender := newFakeSender("flaky")
	sender.fail = func(message string) error {
		if sendCalls.Add(1) < 3 {
			return context.DeadlineExceeded
		}
		return nil
	}

	reports := make(chan DeliveryReport, 4)
	sk, err := New(
		WithURL(server.URL),
		WithQuery(jsonQuery(t, "available")),
		WithInterval(time.Hour),
		WithRequestDelay(0),
		WithSender(sender),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, Multiplier: 2}),
		WithReportCallback(func(r DeliveryReport) { reports <- r }),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stop := runStakeout(t, sk)
	defer stop()

	select {
	case report := <-reports:
		cr := report.Results[0]
		if !cr.Success {
			t.Fatalf("Success = false, err = %v", cr.Err)
		}
		if cr.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", cr.Attempts)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery report in time")
	}
}

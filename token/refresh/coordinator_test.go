package refresh_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-cms-admin/token/refresh"
	"github.com/jrsteele09/go-cms-admin/token/refresh/refreshfake"
	"github.com/jrsteele09/go-cms-admin/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type callResult struct {
	resp *transport.Response
	err  error
}

// arrivingTask returns 401 on its first call and signals arrived, then
// returns 200 with body on every later call.
func arrivingTask(arrived *sync.WaitGroup, body string) refresh.Task {
	var once sync.Once
	calls := 0
	var lock sync.Mutex
	return func(ctx context.Context) (*transport.Response, error) {
		lock.Lock()
		calls++
		n := calls
		lock.Unlock()
		if n == 1 {
			defer once.Do(arrived.Done)
			return nil, &transport.StatusError{Response: &transport.Response{Status: http.StatusUnauthorized}}
		}
		return &transport.Response{Status: http.StatusOK, Body: []byte(body)}, nil
	}
}

func TestCoordinator_Passthrough(t *testing.T) {
	t.Run("success is returned unchanged", func(t *testing.T) {
		r := &refreshfake.Refresher{Status: http.StatusOK}
		sink := &refreshfake.Sink{}
		task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusOK, Body: "X"})

		resp, err := refresh.NewCoordinator(r.Refresh, sink).Do(context.Background(), task.Run)
		require.NoError(t, err)
		require.Equal(t, "X", string(resp.Body))
		require.Equal(t, 1, task.Calls())
		require.Equal(t, 0, r.Calls())
	})

	t.Run("500 is returned as-is without refresh", func(t *testing.T) {
		r := &refreshfake.Refresher{Status: http.StatusOK}
		sink := &refreshfake.Sink{}
		task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusInternalServerError})

		resp, err := refresh.NewCoordinator(r.Refresh, sink).Do(context.Background(), task.Run)
		require.Nil(t, resp)
		require.Error(t, err)
		require.Equal(t, http.StatusInternalServerError, transport.StatusOf(nil, err))
		require.Equal(t, 1, task.Calls())
		require.Equal(t, 0, r.Calls())
		require.Equal(t, 0, sink.SignOuts())
	})

	t.Run("raw 500 response is returned as-is", func(t *testing.T) {
		r := &refreshfake.Refresher{Status: http.StatusOK}
		task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusInternalServerError, Raw: true})

		resp, err := refresh.NewCoordinator(r.Refresh, &refreshfake.Sink{}).Do(context.Background(), task.Run)
		require.NoError(t, err)
		require.Equal(t, http.StatusInternalServerError, resp.Status)
		require.Equal(t, 0, r.Calls())
	})

	t.Run("non-HTTP error propagates untouched", func(t *testing.T) {
		dialErr := errors.New("dial tcp: connection refused")
		r := &refreshfake.Refresher{Status: http.StatusOK}
		task := refreshfake.NewTask(refreshfake.Outcome{Err: dialErr})

		_, err := refresh.NewCoordinator(r.Refresh, &refreshfake.Sink{}).Do(context.Background(), task.Run)
		require.Same(t, dialErr, err)
		require.Equal(t, 1, task.Calls())
		require.Equal(t, 0, r.Calls())
	})
}

func TestCoordinator_SingleRetry(t *testing.T) {
	for _, raw := range []bool{false, true} {
		t.Run(fmt.Sprintf("raw=%v", raw), func(t *testing.T) {
			r := &refreshfake.Refresher{Status: http.StatusOK}
			sink := &refreshfake.Sink{}
			task := refreshfake.NewTask(
				refreshfake.Outcome{Status: http.StatusUnauthorized, Raw: raw},
				refreshfake.Outcome{Status: http.StatusOK, Body: "X"},
			)

			resp, err := refresh.NewCoordinator(r.Refresh, sink).Do(context.Background(), task.Run)
			require.NoError(t, err)
			require.Equal(t, "X", string(resp.Body))
			require.Equal(t, 2, task.Calls())
			require.Equal(t, 1, r.Calls())
			require.Equal(t, 0, sink.SignOuts())
		})
	}
}

func TestCoordinator_RetryErrorIsReturned(t *testing.T) {
	r := &refreshfake.Refresher{Status: http.StatusOK}
	sink := &refreshfake.Sink{}
	task := refreshfake.NewTask(
		refreshfake.Outcome{Status: http.StatusUnauthorized},
		refreshfake.Outcome{Status: http.StatusNotFound},
	)

	_, err := refresh.NewCoordinator(r.Refresh, sink).Do(context.Background(), task.Run)
	require.Equal(t, http.StatusNotFound, transport.StatusOf(nil, err))
	require.NotErrorIs(t, err, refresh.ErrAuthorizationRequired)
	require.Equal(t, 0, sink.SignOuts())
}

func TestCoordinator_DoubleUnauthorizedIsTerminal(t *testing.T) {
	r := &refreshfake.Refresher{Status: http.StatusOK}
	sink := &refreshfake.Sink{}
	task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized})

	resp, err := refresh.NewCoordinator(r.Refresh, sink).Do(context.Background(), task.Run)
	require.Nil(t, resp)
	require.ErrorIs(t, err, refresh.ErrAuthorizationRequired)
	require.Equal(t, 2, task.Calls())
	require.Equal(t, 1, r.Calls())
	require.Equal(t, 1, sink.SignOuts())
}

func TestCoordinator_RefreshFailure(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		r := &refreshfake.Refresher{Status: http.StatusBadRequest}
		sink := &refreshfake.Sink{}
		task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized}, refreshfake.Outcome{Status: http.StatusOK})

		_, err := refresh.NewCoordinator(r.Refresh, sink).Do(context.Background(), task.Run)
		require.ErrorIs(t, err, refresh.ErrAuthorizationRequired)
		require.Equal(t, 1, task.Calls())
		require.Equal(t, 1, sink.SignOuts())
	})

	t.Run("201 is not a successful refresh", func(t *testing.T) {
		r := &refreshfake.Refresher{Status: http.StatusCreated}
		sink := &refreshfake.Sink{}
		task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized}, refreshfake.Outcome{Status: http.StatusOK})

		_, err := refresh.NewCoordinator(r.Refresh, sink).Do(context.Background(), task.Run)
		require.ErrorIs(t, err, refresh.ErrAuthorizationRequired)
		require.Equal(t, 1, sink.SignOuts())
	})

	t.Run("refresh error", func(t *testing.T) {
		netErr := errors.New("connection reset")
		r := &refreshfake.Refresher{Err: netErr}
		sink := &refreshfake.Sink{}
		task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized})

		_, err := refresh.NewCoordinator(r.Refresh, sink).Do(context.Background(), task.Run)
		require.ErrorIs(t, err, refresh.ErrAuthorizationRequired)
		require.ErrorIs(t, err, netErr)
		require.Equal(t, 1, task.Calls())
		require.Equal(t, 1, sink.SignOuts())
	})

	t.Run("every waiter fails and sign-out happens once", func(t *testing.T) {
		const n = 5
		gate := make(chan struct{})
		r := &refreshfake.Refresher{Status: http.StatusServiceUnavailable, Gate: gate}
		sink := &refreshfake.Sink{}
		c := refresh.NewCoordinator(r.Refresh, sink)

		var arrived sync.WaitGroup
		arrived.Add(n)
		results := make(chan callResult, n)
		for i := 0; i < n; i++ {
			task := arrivingTask(&arrived, "unused")
			go func() {
				resp, err := c.Do(context.Background(), task)
				results <- callResult{resp, err}
			}()
		}
		arrived.Wait()
		time.Sleep(50 * time.Millisecond)
		close(gate)

		for i := 0; i < n; i++ {
			res := <-results
			require.Nil(t, res.resp)
			require.ErrorIs(t, res.err, refresh.ErrAuthorizationRequired)
		}
		require.Equal(t, 1, r.Calls())
		require.Equal(t, 1, sink.SignOuts())
	})
}

func TestCoordinator_SingleRefreshForConcurrentCallers(t *testing.T) {
	const n = 8
	gate := make(chan struct{})
	r := &refreshfake.Refresher{Status: http.StatusOK, Gate: gate}
	sink := &refreshfake.Sink{}
	c := refresh.NewCoordinator(r.Refresh, sink)

	var arrived sync.WaitGroup
	arrived.Add(n)
	results := make([]callResult, n)
	var done sync.WaitGroup
	for i := 0; i < n; i++ {
		task := arrivingTask(&arrived, fmt.Sprintf("body-%d", i))
		done.Add(1)
		go func(i int) {
			defer done.Done()
			resp, err := c.Do(context.Background(), task)
			results[i] = callResult{resp, err}
		}(i)
	}
	arrived.Wait()
	time.Sleep(50 * time.Millisecond)
	close(gate)
	done.Wait()

	require.Equal(t, 1, r.Calls())
	require.Equal(t, 0, sink.SignOuts())
	for i, res := range results {
		require.NoError(t, res.err)
		require.Equal(t, fmt.Sprintf("body-%d", i), string(res.resp.Body))
	}
}

func TestCoordinator_TwoCallersShareRefresh(t *testing.T) {
	refreshCalls := 0
	var lock sync.Mutex
	refreshFn := func(ctx context.Context) (*transport.Response, error) {
		lock.Lock()
		refreshCalls++
		lock.Unlock()
		time.Sleep(50 * time.Millisecond)
		return &transport.Response{Status: http.StatusOK}, nil
	}
	c := refresh.NewCoordinator(refreshFn, &refreshfake.Sink{})

	var arrived sync.WaitGroup
	arrived.Add(2)
	taskA := arrivingTask(&arrived, "X")
	taskB := arrivingTask(&arrived, "Y")

	a := make(chan callResult, 1)
	b := make(chan callResult, 1)
	go func() {
		resp, err := c.Do(context.Background(), taskA)
		a <- callResult{resp, err}
	}()
	go func() {
		resp, err := c.Do(context.Background(), taskB)
		b <- callResult{resp, err}
	}()

	resA, resB := <-a, <-b
	require.NoError(t, resA.err)
	require.NoError(t, resB.err)
	require.Equal(t, "X", string(resA.resp.Body))
	require.Equal(t, "Y", string(resB.resp.Body))

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, 1, refreshCalls)
}

func TestCoordinator_SlotClearsAfterSettle(t *testing.T) {
	t.Run("after success", func(t *testing.T) {
		r := &refreshfake.Refresher{Status: http.StatusOK}
		c := refresh.NewCoordinator(r.Refresh, &refreshfake.Sink{})

		for i := 0; i < 3; i++ {
			task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized}, refreshfake.Outcome{Status: http.StatusOK})
			_, err := c.Do(context.Background(), task.Run)
			require.NoError(t, err)
		}
		require.Equal(t, 3, r.Calls())
	})

	t.Run("after failure", func(t *testing.T) {
		r := &refreshfake.Refresher{Status: http.StatusUnauthorized}
		sink := &refreshfake.Sink{}
		c := refresh.NewCoordinator(r.Refresh, sink)

		for i := 0; i < 2; i++ {
			task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized})
			_, err := c.Do(context.Background(), task.Run)
			require.ErrorIs(t, err, refresh.ErrAuthorizationRequired)
		}
		require.Equal(t, 2, r.Calls())
		require.Equal(t, 2, sink.SignOuts())
	})
}

func TestCoordinator_IndependentInstances(t *testing.T) {
	gate := make(chan struct{})
	blocked := &refreshfake.Refresher{Status: http.StatusOK, Gate: gate}
	free := &refreshfake.Refresher{Status: http.StatusOK}

	c1 := refresh.NewCoordinator(blocked.Refresh, &refreshfake.Sink{})
	c2 := refresh.NewCoordinator(free.Refresh, &refreshfake.Sink{})

	first := make(chan error, 1)
	go func() {
		task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized}, refreshfake.Outcome{Status: http.StatusOK})
		_, err := c1.Do(context.Background(), task.Run)
		first <- err
	}()

	task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized}, refreshfake.Outcome{Status: http.StatusOK})
	_, err := c2.Do(context.Background(), task.Run)
	require.NoError(t, err)
	require.Equal(t, 1, free.Calls())

	close(gate)
	require.NoError(t, <-first)
	require.Equal(t, 1, blocked.Calls())
}

func TestCoordinator_CallerCancellation(t *testing.T) {
	gate := make(chan struct{})
	r := &refreshfake.Refresher{Status: http.StatusOK, Gate: gate}
	c := refresh.NewCoordinator(r.Refresh, &refreshfake.Sink{})

	var arrived sync.WaitGroup
	arrived.Add(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := c.Do(ctx, arrivingTask(&arrived, "gone"))
		cancelled <- err
	}()
	patient := make(chan callResult, 1)
	go func() {
		resp, err := c.Do(context.Background(), arrivingTask(&arrived, "Y"))
		patient <- callResult{resp, err}
	}()

	arrived.Wait()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-cancelled, context.Canceled)

	close(gate)
	res := <-patient
	require.NoError(t, res.err)
	require.Equal(t, "Y", string(res.resp.Body))
	require.Equal(t, 1, r.Calls())
}

func TestCoordinator_RefreshTimeout(t *testing.T) {
	r := &refreshfake.Refresher{Status: http.StatusOK, Gate: make(chan struct{})}
	sink := &refreshfake.Sink{}
	c := refresh.NewCoordinator(r.Refresh, sink, refresh.WithRefreshTimeout(20*time.Millisecond))

	task := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized}, refreshfake.Outcome{Status: http.StatusOK})
	_, err := c.Do(context.Background(), task.Run)
	require.ErrorIs(t, err, refresh.ErrAuthorizationRequired)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, task.Calls())
	require.Equal(t, 1, sink.SignOuts())
}

func TestCoordinator_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := refresh.NewMetrics(reg)
	r := &refreshfake.Refresher{Status: http.StatusOK}
	c := refresh.NewCoordinator(r.Refresh, &refreshfake.Sink{}, refresh.WithMetrics(m))

	ok := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized}, refreshfake.Outcome{Status: http.StatusOK})
	_, err := c.Do(context.Background(), ok.Run)
	require.NoError(t, err)

	denied := refreshfake.NewTask(refreshfake.Outcome{Status: http.StatusUnauthorized})
	_, err = c.Do(context.Background(), denied.Run)
	require.ErrorIs(t, err, refresh.ErrAuthorizationRequired)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Refreshes.WithLabelValues("success")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Waits))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("unauthorized")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SignOuts))
}

func TestSessionSinkFunc(t *testing.T) {
	called := 0
	var sink refresh.SessionSink = refresh.SessionSinkFunc(func() { called++ })
	sink.SignOut()
	require.Equal(t, 1, called)
}

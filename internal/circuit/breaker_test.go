package circuit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errRemote = errors.New("remote unavailable")

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "CLOSED"},
		{StateOpen, "OPEN"},
		{StateHalfOpen, "HALF_OPEN"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{})

	if b.config.FailureThreshold != 5 {
		t.Errorf("default FailureThreshold = %d, want 5", b.config.FailureThreshold)
	}
	if b.config.RecoveryTimeout != 60*time.Second {
		t.Errorf("default RecoveryTimeout = %v, want 60s", b.config.RecoveryTimeout)
	}
	if b.GetState() != StateClosed {
		t.Errorf("initial state = %v, want CLOSED", b.GetState())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{FailureThreshold: 5, RecoveryTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		if err := b.Execute(func() error { return errRemote }); !errors.Is(err, errRemote) {
			t.Fatalf("call %d: err = %v, want %v", i, err, errRemote)
		}
	}

	if b.GetState() != StateOpen {
		t.Fatalf("state after 5 failures = %v, want OPEN", b.GetState())
	}

	// The 6th call must short-circuit without invoking the function.
	invoked := false
	err := b.Execute(func() error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("err = %v, want ErrOpen", err)
	}
	if invoked {
		t.Error("wrapped function invoked while breaker open")
	}
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errRemote })
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("success call failed: %v", err)
	}

	if got := b.GetCounts().ConsecutiveFailures; got != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", got)
	}

	// Two more failures still should not trip (run restarted).
	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errRemote })
	}
	if b.GetState() != StateClosed {
		t.Errorf("state = %v, want CLOSED", b.GetState())
	}
}

func TestBreaker_RecoversAfterTimeout(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{FailureThreshold: 2, RecoveryTimeout: 100 * time.Millisecond})

	for i := 0; i < 2; i++ {
		_ = b.Execute(func() error { return errRemote })
	}
	if b.GetState() != StateOpen {
		t.Fatalf("state = %v, want OPEN", b.GetState())
	}

	time.Sleep(150 * time.Millisecond)

	// The next call is a half-open probe and must be allowed through.
	invoked := false
	if err := b.Execute(func() error {
		invoked = true
		return nil
	}); err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !invoked {
		t.Error("probe was not invoked")
	}
	if b.GetState() != StateClosed {
		t.Errorf("state after successful probe = %v, want CLOSED", b.GetState())
	}
}

func TestBreaker_HalfOpenAdmitsSingleProbe(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{FailureThreshold: 1, RecoveryTimeout: 30 * time.Millisecond})

	_ = b.Execute(func() error { return errRemote })
	time.Sleep(50 * time.Millisecond)

	// Hold the probe in flight and try a second call concurrently.
	probeStarted := make(chan struct{})
	release := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- b.Execute(func() error {
			close(probeStarted)
			<-release
			return nil
		})
	}()
	<-probeStarted

	invoked := false
	err := b.Execute(func() error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("second half-open call: err = %v, want ErrTooManyRequests", err)
	}
	if invoked {
		t.Error("second caller invoked while probe still in flight")
	}

	close(release)
	if err := <-probeDone; err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if b.GetState() != StateClosed {
		t.Errorf("state after successful probe = %v, want CLOSED", b.GetState())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})

	_ = b.Execute(func() error { return errRemote })
	time.Sleep(80 * time.Millisecond)

	_ = b.Execute(func() error { return errRemote })

	if b.GetState() != StateOpen {
		t.Errorf("state after failed probe = %v, want OPEN", b.GetState())
	}
}

func TestBreaker_StateChangeCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var transitions []string

	b := New("remote", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  30 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			transitions = append(transitions, from.String()+"->"+to.String())
			mu.Unlock()
		},
	})

	_ = b.Execute(func() error { return errRemote })
	time.Sleep(50 * time.Millisecond)
	_ = b.Execute(func() error { return nil })

	mu.Lock()
	defer mu.Unlock()
	want := []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestBreaker_ExecuteWithContext(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{FailureThreshold: 2, RecoveryTimeout: time.Minute})

	var gotCtx context.Context
	err := b.ExecuteWithContext(context.Background(), func(ctx context.Context) error {
		gotCtx = ctx
		return nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithContext failed: %v", err)
	}
	if gotCtx == nil {
		t.Error("context not passed through")
	}
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{FailureThreshold: 1, RecoveryTimeout: time.Hour})
	_ = b.Execute(func() error { return errRemote })

	if b.GetState() != StateOpen {
		t.Fatalf("state = %v, want OPEN", b.GetState())
	}

	b.Reset()

	if b.GetState() != StateClosed {
		t.Errorf("state after reset = %v, want CLOSED", b.GetState())
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Errorf("call after reset failed: %v", err)
	}
}

func TestBreaker_ConcurrentCalls(t *testing.T) {
	t.Parallel()

	b := New("remote", Config{FailureThreshold: 1000, RecoveryTimeout: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if n%2 == 0 {
					_ = b.Execute(func() error { return nil })
				} else {
					_ = b.Execute(func() error { return errRemote })
				}
			}
		}(i)
	}
	wg.Wait()

	counts := b.GetCounts()
	if counts.TotalSuccesses != 800 || counts.TotalFailures != 800 {
		t.Errorf("counts = %+v, want 800 successes and 800 failures", counts)
	}
}

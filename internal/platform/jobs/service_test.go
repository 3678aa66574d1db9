package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type failureCounter struct{ n atomic.Int64 }

func (f *failureCounter) RecordJobFailure() { f.n.Add(1) }

func TestRunNowRecordsCompletedRun(t *testing.T) {
	svc := New(nil)
	run, err := svc.RunNow(context.Background(), JobRepairInstallments, func(context.Context) (any, error) {
		return map[string]int{"fixed": 2}, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.Status != StatusCompleted || run.StartedAt == nil || run.CompletedAt == nil {
		t.Fatalf("unexpected run %+v", run)
	}
	got, ok := svc.Get(run.ID)
	if !ok || got.Status != StatusCompleted {
		t.Fatalf("run not recorded: %+v", got)
	}
}

func TestRunNowRecordsFailure(t *testing.T) {
	failures := &failureCounter{}
	svc := New(failures)
	boom := errors.New("boom")
	run, err := svc.RunNow(context.Background(), JobNormalizeCurrency, func(context.Context) (any, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if run.Status != StatusFailed || run.Error != "boom" {
		t.Fatalf("unexpected run %+v", run)
	}
	if failures.n.Load() != 1 {
		t.Fatalf("expected 1 failure recorded, got %d", failures.n.Load())
	}
}

func TestWorkerProcessesQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := New(nil)
	svc.Start(ctx)

	done := make(chan struct{})
	id := svc.Enqueue(JobRepairInstallments, func(context.Context) (any, error) {
		close(done)
		return nil, nil
	})
	if id == "" {
		t.Fatalf("expected run id")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("queued job never ran")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if run, _ := svc.Get(id); run.Status == StatusCompleted {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never completed", id)
}

func TestHistoryIsBoundedAndNewestFirst(t *testing.T) {
	svc := New(nil)
	svc.historyLimit = 3
	noop := func(context.Context) (any, error) { return nil, nil }
	var ids []string
	for i := 0; i < 5; i++ {
		run, _ := svc.RunNow(context.Background(), JobRepairInstallments, noop)
		ids = append(ids, run.ID)
	}
	history := svc.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(history))
	}
	if history[0].ID != ids[4] || history[2].ID != ids[2] {
		t.Fatalf("unexpected order: %+v", history)
	}
}

func TestScheduleDisabledForZeroInterval(t *testing.T) {
	svc := New(nil)
	var calls atomic.Int64
	svc.Schedule(context.Background(), JobRepairInstallments, 0, func(context.Context) (any, error) {
		calls.Add(1)
		return nil, nil
	})
	time.Sleep(20 * time.Millisecond)
	if len(svc.History()) != 0 || calls.Load() != 0 {
		t.Fatalf("expected no scheduled runs")
	}
}

func TestWaitBlocksUntilInFlightJobFinishes(t *testing.T) {
	svc := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	svc.Schedule(ctx, JobRepairInstallments, time.Hour, func(context.Context) (any, error) { return nil, nil })

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	svc.Enqueue(JobRepairInstallments, func(context.Context) (any, error) {
		close(started)
		<-release
		finished.Store(true)
		return nil, nil
	})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}

	cancel()
	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Wait returned while a job was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after the job finished")
	}
	if !finished.Load() {
		t.Fatal("job did not finish before Wait returned")
	}
}

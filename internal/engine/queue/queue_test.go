package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestFIFOOrderDespiteLatency(t *testing.T) {
	q := New()
	defer q.Close(context.Background())

	var mu sync.Mutex
	var doc []string

	a, err := q.Enqueue(SourceAI, func() (any, error) {
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		doc = append(doc, "A")
		mu.Unlock()
		return nil, nil
	})
	if err != nil {
		t.Fatalf("enqueue A: %v", err)
	}

	var observed []string
	b, err := q.Enqueue(SourceHuman, func() (any, error) {
		mu.Lock()
		defer mu.Unlock()
		observed = append([]string(nil), doc...)
		doc = append(doc, "B")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("enqueue B: %v", err)
	}

	ctx := context.Background()
	if _, err := b.Wait(ctx); err != nil {
		t.Fatalf("B failed: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatal("B completed before A")
	}
	if len(observed) != 1 || observed[0] != "A" {
		t.Errorf("B should observe A's effect, saw %v", observed)
	}
}

func TestTasksNeverOverlap(t *testing.T) {
	q := New()
	defer q.Close(context.Background())

	var mu sync.Mutex
	active, maxActive := 0, 0

	var tickets []*Ticket
	for i := 0; i < 20; i++ {
		tk, err := q.Enqueue(SourceHuman, func() (any, error) {
			mu.Lock()
			active++
			maxActive = max(maxActive, active)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return nil, nil
		})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
		tickets = append(tickets, tk)
	}
	for _, tk := range tickets {
		<-tk.Done()
	}
	if maxActive != 1 {
		t.Errorf("expected at most one active task, saw %d", maxActive)
	}
}

func TestFailureDoesNotBlockLaterTasks(t *testing.T) {
	q := New()
	defer q.Close(context.Background())
	ctx := context.Background()

	boom := errors.New("boom")
	first, _ := q.Enqueue(SourceAI, func() (any, error) { return nil, boom })
	second, _ := q.Enqueue(SourceAI, func() (any, error) { panic("kaboom") })
	third, _ := q.Enqueue(SourceHuman, func() (any, error) { return 3, nil })

	if _, err := first.Wait(ctx); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	_, err := second.Wait(ctx)
	var te *TaskError
	if !errors.As(err, &te) || te.Panic != "kaboom" || te.Source != SourceAI {
		t.Errorf("expected TaskError for panic, got %v", err)
	}
	v, err := third.Wait(ctx)
	if err != nil || v != 3 {
		t.Errorf("third task = %v, %v", v, err)
	}

	st := q.Stats()
	if st.Enqueued != 3 || st.Completed != 3 || st.Failed != 2 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestSubmitTyped(t *testing.T) {
	q := New()
	defer q.Close(context.Background())

	n, err := Submit(context.Background(), q, SourceSystem, func() (int, error) { return 42, nil })
	if err != nil || n != 42 {
		t.Errorf("Submit = %d, %v", n, err)
	}
}

func TestWaitAbandonDoesNotCancel(t *testing.T) {
	q := New()
	defer q.Close(context.Background())

	release := make(chan struct{})
	ran := make(chan struct{})
	tk, _ := q.Enqueue(SourceAI, func() (any, error) {
		<-release
		close(ran)
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tk.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("abandoned task did not run to completion")
	}
}

func TestDepth(t *testing.T) {
	q := New()
	defer q.Close(context.Background())

	release := make(chan struct{})
	started := make(chan struct{})
	first, _ := q.Enqueue(SourceHuman, func() (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started
	last, _ := q.Enqueue(SourceHuman, func() (any, error) { return nil, nil })

	if d := q.Depth(); d != 2 {
		t.Errorf("expected depth 2, got %d", d)
	}
	close(release)
	<-first.Done()
	<-last.Done()
}

func TestCloseDrainsAndRejects(t *testing.T) {
	q := New()

	var ran []int
	var mu sync.Mutex
	for i := 0; i < 5; i++ {
		i := i
		if _, err := q.Enqueue(SourceHuman, func() (any, error) {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
			return nil, nil
		}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(ran) != 5 {
		t.Errorf("expected all queued tasks to run, ran %v", ran)
	}
	for i, v := range ran {
		if v != i {
			t.Errorf("tasks ran out of order: %v", ran)
			break
		}
	}
	if _, err := q.Enqueue(SourceHuman, func() (any, error) { return nil, nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := q.Close(ctx); err != nil {
		t.Errorf("second close: %v", err)
	}
}

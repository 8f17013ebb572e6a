package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlightGroupDeduplicates(t *testing.T) {
	group := newFlightGroup[string]()
	var runs atomic.Int32

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = group.do(context.Background(), "key", func(ctx context.Context) (string, error) {
				runs.Add(1)
				time.Sleep(20 * time.Millisecond)
				return "shared", nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), runs.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestFlightGroupRunsAgainAfterCompletion(t *testing.T) {
	group := newFlightGroup[string]()
	var runs atomic.Int32
	fn := func(ctx context.Context) (string, error) {
		runs.Add(1)
		return "value", nil
	}

	_, err := group.do(context.Background(), "key", fn)
	require.NoError(t, err)
	_, err = group.do(context.Background(), "key", fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), runs.Load(), "sequential calls are separate computations")
}

func TestFlightGroupSurvivesOneCallerLeaving(t *testing.T) {
	group := newFlightGroup[string]()
	release := make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := group.do(firstCtx, "key", func(ctx context.Context) (string, error) {
			<-release
			return "late", ctx.Err()
		})
		firstDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	secondDone := make(chan string, 1)
	go func() {
		value, _ := group.do(context.Background(), "key", func(ctx context.Context) (string, error) {
			t.Error("second caller must join the running flight, not start a new one")
			return "", nil
		})
		secondDone <- value
	}()

	time.Sleep(10 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.Equal(t, "late", <-secondDone, "remaining waiter still receives the shared result")
}

func TestFlightGroupCancelsWhenLastWaiterLeaves(t *testing.T) {
	group := newFlightGroup[string]()
	sharedCancelled := make(chan struct{})

	callerCtx, cancelCaller := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := group.do(callerCtx, "key", func(ctx context.Context) (string, error) {
			<-ctx.Done()
			close(sharedCancelled)
			return "", ctx.Err()
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancelCaller()
	assert.ErrorIs(t, <-done, context.Canceled)

	select {
	case <-sharedCancelled:
	case <-time.After(time.Second):
		t.Fatal("shared computation was not cancelled after the last waiter left")
	}
}

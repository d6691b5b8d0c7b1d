package scheduler_test

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/taskpool/pkg/scheduling/scheduler"
	"github.com/vnykmshr/taskpool/pkg/scheduling/threadpool"
)

// Example demonstrates a repeating entry feeding a shared pool.
func Example() {
	pool, err := threadpool.New(2)
	if err != nil {
		log.Fatal(err)
	}

	s, err := scheduler.NewWithConfig(scheduler.Config{
		Pool:         pool,
		TickInterval: 5 * time.Millisecond,
	})
	if err != nil {
		log.Fatal(err)
	}

	var beats int32
	heartbeat := func(interface{}) interface{} {
		atomic.AddInt32(&beats, 1)
		return nil
	}

	if err := s.ScheduleRepeating("heartbeat", heartbeat, nil, 10*time.Millisecond); err != nil {
		log.Fatal(err)
	}
	if err := s.Start(); err != nil {
		log.Fatal(err)
	}

	for atomic.LoadInt32(&beats) < 3 {
		time.Sleep(time.Millisecond)
	}

	_ = s.Stop(context.Background())
	_ = pool.WaitIdle(context.Background())
	_ = pool.Delete()

	fmt.Println("at least 3 beats:", atomic.LoadInt32(&beats) >= 3)

	// Output: at least 3 beats: true
}

// ExampleDescribeCron demonstrates previewing a cron expression.
func ExampleDescribeCron() {
	from := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) // a Monday
	desc, err := scheduler.DescribeCron("0 30 14 * * 1-5", from, 3)
	if err != nil {
		log.Fatal(err)
	}

	for _, run := range desc.NextRuns {
		fmt.Println(run.Format("Mon 15:04"))
	}

	// Output:
	// Mon 14:30
	// Tue 14:30
	// Wed 14:30
}

package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fulldump/optimist/cache"
	"github.com/fulldump/optimist/client"
	"github.com/fulldump/optimist/mutation"
	"github.com/fulldump/optimist/service"
)

// TestOptimistic measures the full mutation lifecycle: speculative
// cache write, real insert and revalidation of the cached query.
func TestOptimistic(c Config) {

	if c.Base == "" {
		start, stop := CreateServer(&c)
		defer stop()
		go start()
		time.Sleep(100 * time.Millisecond) // let the store open
	}

	table := TableName()

	cl := client.New(c.Base)
	store := cache.NewStore()
	key := cl.Bind(store, table, service.Query{CountMode: "exact", Limit: 10})
	coordinator := mutation.NewCoordinator(cl, store)

	items := c.N
	errors := int64(0)

	t0 := time.Now()
	Parallel(c.Workers, func() {
		for {
			n := atomic.AddInt64(&items, -1)
			if n < 0 {
				return
			}
			envelope, err := coordinator.Handle(context.Background(), key, mutation.Settings{
				Kind:      mutation.KindInsert,
				Table:     table,
				CountMode: mutation.CountExact,
				Row: JSON{
					"id": n,
					"n":  fmt.Sprint(n),
				},
			})
			if err != nil {
				fmt.Println("ERROR: handle:", err.Error())
				return
			}
			if envelope.Status == mutation.StatusError {
				atomic.AddInt64(&errors, 1)
			}
		}
	})

	took := time.Since(t0)
	fmt.Println("mutations:", c.N)
	fmt.Println("errors:", errors)
	fmt.Println("took:", took)
	fmt.Printf("Throughput: %.2f mutations/sec\n", float64(c.N)/took.Seconds())

	if snapshot := store.Get(key); snapshot != nil && snapshot.Count != nil {
		fmt.Println("cached count:", *snapshot.Count)
	}
}

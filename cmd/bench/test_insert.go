package main

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fulldump/optimist/client"
)

// TestInsert measures raw insert throughput, no cache involved.
func TestInsert(c Config) {

	if c.Base == "" {
		start, stop := CreateServer(&c)
		defer stop()
		go start()
		time.Sleep(100 * time.Millisecond) // let the store open
	}

	table := TableName()

	cl := client.New(c.Base).WithHTTPClient(&http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     1024,
			MaxIdleConnsPerHost: 1024,
			MaxIdleConns:        1024,
		},
	})

	items := c.N

	go func() {
		for {
			fmt.Println("items:", atomic.LoadInt64(&items))
			time.Sleep(1 * time.Second)
		}
	}()

	t0 := time.Now()
	Parallel(c.Workers, func() {
		for {
			n := atomic.AddInt64(&items, -1)
			if n < 0 {
				return
			}
			_, err := cl.InsertRow(context.Background(), table, nil, "id", JSON{
				"id": n,
				"n":  fmt.Sprint(n),
			}, false)
			if err != nil {
				fmt.Println("ERROR: insert:", err.Error())
				return
			}
		}
	})

	took := time.Since(t0)
	fmt.Println("sent:", c.N)
	fmt.Println("took:", took)
	fmt.Printf("Throughput: %.2f rows/sec\n", float64(c.N)/took.Seconds())
}

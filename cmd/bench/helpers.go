package main

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fulldump/optimist/bootstrap"
	"github.com/fulldump/optimist/configuration"
)

type JSON = map[string]any

func Parallel(workers int, f func()) {
	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}
	wg.Wait()
}

func TempDir() (string, func()) {
	dir, err := os.MkdirTemp("", "optimist_bench_*")
	if err != nil {
		panic("Could not create temp directory: " + err.Error())
	}

	cleanup := func() {
		os.RemoveAll(dir)
	}

	return dir, cleanup
}

func TableName() string {
	return "bench-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

func CreateServer(c *Config) (start, stop func()) {
	dir, cleanup := TempDir()
	cleanups = append(cleanups, cleanup)

	conf := configuration.Default()
	conf.Dir = dir
	conf.ShowBanner = false
	c.Base = "http://" + conf.HttpAddr

	return bootstrap.Bootstrap(&conf)
}

package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/fulldump/goconfig"
)

type Config struct {
	Test    string `usage:"name of the test: INSERT | OPTIMISTIC"`
	Base    string `usage:"base URL, empty starts an embedded server"`
	N       int64  `usage:"number of rows"`
	Workers int    `usage:"number of workers"`
}

var cleanups []func()

func main() {

	defer func() {
		fmt.Println("Cleaning up...")
		for _, cleanup := range cleanups {
			cleanup()
		}
	}()

	c := Config{
		Test:    "optimistic",
		Base:    "",
		N:       100_000,
		Workers: 16,
	}
	goconfig.Read(&c)

	switch strings.ToUpper(c.Test) {
	case "INSERT":
		TestInsert(c)
	case "OPTIMISTIC":
		TestOptimistic(c)
	default:
		log.Fatalf("Unknown test %s", c.Test)
	}
}

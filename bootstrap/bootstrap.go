// Package bootstrap wires the row backend together: store, service,
// changefeed hub and HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fulldump/box"

	"github.com/fulldump/optimist/api"
	"github.com/fulldump/optimist/configuration"
	"github.com/fulldump/optimist/realtime"
	"github.com/fulldump/optimist/service"
	"github.com/fulldump/optimist/store"
)

var VERSION = "dev"

func Bootstrap(c *configuration.Configuration) (start, stop func()) {

	st := store.NewStore(&store.Config{
		Dir:     c.Dir,
		IDField: c.IDField,
	})

	hub := realtime.NewHub()

	s := service.NewService(st).
		WithNotifier(func(tableName, action string, id interface{}) {
			hub.Broadcast(realtime.Notice{
				Table:  tableName,
				Action: action,
				ID:     id,
			})
		}).
		WithProcedure("ping", func(payload service.JSON) (interface{}, error) {
			return "pong", nil
		})

	b := api.Build(s, VERSION)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(log.New(os.Stdout, "ACCESS: ", log.Lshortfile)),
		api.InterceptorUnavailable(s),
		api.RecoverFromPanic,
		api.PrettyErrorInterceptor,
	)

	// the changefeed is mounted outside box, websocket upgrades need the
	// raw http.ResponseWriter
	mux := http.NewServeMux()
	mux.Handle("/v1/changefeed", hub)
	mux.Handle("/", box.Box2Http(b))

	server := &http.Server{
		Addr:    c.HttpAddr,
		Handler: mux,
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		log.Println("ERROR:", err.Error())
		os.Exit(-1)
	}
	log.Println("listening on", c.HttpAddr)

	stop = func() {
		hub.Close()
		st.Stop()
		server.Shutdown(context.Background())
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		for {
			sig := <-signalChan
			fmt.Println("Signal received", sig.String())
			stop()
		}
	}()

	start = func() {

		wg := &sync.WaitGroup{}

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := st.Start()
			if err != nil {
				fmt.Println(err.Error())
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			err := server.Serve(ln)
			if err != nil {
				fmt.Println(err.Error())
			}
		}()

		wg.Wait()
	}

	return
}

package progress

import (
	"context"
	"github.com/gorilla/mux"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

//defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

//ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

//makeRouter routes the status and metrics endpoints
func makeRouter(collector *Collector) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/metrics", collector.Handler())
	return r
}

//createServer creates configured http.Server exposing collector metrics
func createServer(collector *Collector, httpPort int) *http.Server {
	srv := &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      makeRouter(collector),
	}
	return srv
}

//StartWebService serves metrics on httpPort in the background until ctx is done.
//wg is released once the server has shut down
func StartWebService(ctx context.Context,
	log *logger.Logger,
	wg *sync.WaitGroup,
	collector *Collector,
	httpPort int) {
	wg.Add(1)
	go runWebService(ctx, log, wg, collector, httpPort)
}

func runWebService(ctx context.Context,
	log *logger.Logger,
	wg *sync.WaitGroup,
	collector *Collector,
	httpPort int) {
	defer wg.Done()
	srv := createServer(collector, httpPort)
	log.Printf("Starting metrics server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()

	<-ctx.Done()
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}

package httpserver

import (
	"net/http"
	"time"
)

// New builds the clinic API server. Requests are short CRUD and workflow
// calls; the write timeout keeps a stuck administration transaction from
// holding a connection open.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

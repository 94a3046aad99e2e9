package main

import (
	"net/http"
	"sync/atomic"
)

// handlerSwapper lets serve replace the API router on reload while the
// listener keeps running. Requests in flight finish on the router they
// started with.
type handlerSwapper struct {
	current atomic.Pointer[routerGen]
}

type routerGen struct {
	http.Handler
	gen uint64
}

func newHandlerSwapper(h http.Handler) *handlerSwapper {
	s := &handlerSwapper{}
	s.current.Store(&routerGen{Handler: h, gen: 1})
	return s
}

func (s *handlerSwapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.current.Load().ServeHTTP(w, r)
}

// Swap installs h and returns the handler it replaced.
func (s *handlerSwapper) Swap(h http.Handler) http.Handler {
	for {
		old := s.current.Load()
		if s.current.CompareAndSwap(old, &routerGen{Handler: h, gen: old.gen + 1}) {
			return old.Handler
		}
	}
}

// Generation counts installed routers, starting at 1.
func (s *handlerSwapper) Generation() uint64 { return s.current.Load().gen }

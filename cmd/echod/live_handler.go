package main

import (
	"net/http"
	"sync"
)

// buildFunc builds the request handler for a configuration.
type buildFunc func(Config) (http.Handler, error)

// liveHandler serves through a handler built from the current configuration
// and swaps in a new one when a reload changes a field the handler reads.
// Requests already in flight, feed streams included, finish on the handler
// they started on.
type liveHandler struct {
	build buildFunc

	mu      sync.RWMutex
	cfg     Config
	handler http.Handler
}

func newLiveHandler(cfg Config, build buildFunc) (*liveHandler, error) {
	h, err := build(cfg)
	if err != nil {
		return nil, err
	}
	return &liveHandler{build: build, cfg: cfg, handler: h}, nil
}

func (l *liveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.RLock()
	h := l.handler
	l.mu.RUnlock()
	h.ServeHTTP(w, r)
}

// Apply rebuilds the handler when cfg changes a hot field and returns the
// diff against the running configuration. Fields listed in RestartNeeded
// keep their running values. A failed build keeps the old handler.
func (l *liveHandler) Apply(cfg Config) (configDiff, error) {
	l.mu.RLock()
	running := l.cfg
	l.mu.RUnlock()

	d := diffConfigs(running, cfg)
	cfg.ListenAddr, cfg.DBPath = running.ListenAddr, running.DBPath
	if !d.HandlerChanged {
		return d, nil
	}
	h, err := l.build(cfg)
	if err != nil {
		return d, err
	}

	l.mu.Lock()
	l.cfg = cfg
	l.handler = h
	l.mu.Unlock()
	return d, nil
}

// Config returns the configuration the current handler was built from.
func (l *liveHandler) Config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

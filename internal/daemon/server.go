package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cratenav/cratenav/internal/config"
	"github.com/cratenav/cratenav/internal/fragment"
	"github.com/cratenav/cratenav/internal/index"
	"github.com/cratenav/cratenav/internal/render"
	"github.com/cratenav/cratenav/internal/rpc"
	"github.com/cratenav/cratenav/internal/store"
	"golang.org/x/sync/singleflight"
)

// Server holds the live navigation index for the daemon's lifetime. Fragment
// registration may begin (autoload) before the store consumers attach; the
// registry buffers those contributions and flushes them on attach, so nothing
// is dropped regardless of startup interleaving.
type Server struct {
	impls      *index.ImplementorIndex
	sidebar    *index.SidebarIndex
	loader     *fragment.Loader
	store      *store.Store
	cfg        *config.Config
	socketPath string
	httpServer *http.Server
	listener   net.Listener

	mu         sync.Mutex
	expTimer   *time.Timer
	expiration time.Duration

	loadGroup singleflight.Group
}

func NewServer(cfg *config.Config, st *store.Store, socketPath string) *Server {
	impls := index.NewImplementorIndex()
	sidebar := index.NewSidebarIndex()

	return &Server{
		impls:      impls,
		sidebar:    sidebar,
		loader:     fragment.NewLoader(impls, sidebar),
		store:      st,
		cfg:        cfg,
		socketPath: socketPath,
		expiration: cfg.Daemon.IdleTimeout,
	}
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	os.Remove(s.socketPath)

	// The stored snapshot mirrors this daemon session's merged index, so a
	// fresh session starts from an empty table set.
	if err := s.store.Reset(); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}

	// Autoload registers fragments before any consumer is attached: the
	// registry buffers them and the attach below flushes the lot as one batch.
	if dir := s.cfg.Fragments.Dir; dir != "" {
		results, err := s.loader.LoadDir(ctx, dir)
		if err != nil {
			log.Printf("daemon: autoload failed: %v", err)
		} else {
			s.recordProducers(results)
			log.Printf("daemon: autoloaded %d fragment files from %s", len(results), dir)
		}
	}

	s.attachStore()

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on socket: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("setting socket permissions: %w", err)
	}
	s.listener = listener

	s.httpServer = &http.Server{Handler: s.Handler()}

	s.mu.Lock()
	s.expTimer = time.AfterFunc(s.expiration, s.expire)
	s.mu.Unlock()

	log.Printf("daemon: listening on %s (expires after %s of inactivity)", s.socketPath, s.expiration)

	if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

// attachStore wires the store in as the consumer of both indexes. Anything
// registered beforehand arrives here as the initial flush batch; everything
// after arrives incrementally.
func (s *Server) attachStore() {
	s.impls.Attach(func(batch map[string][]index.Implementor) {
		if err := s.store.AppendImplementors(batch); err != nil {
			log.Printf("daemon: persisting implementors: %v", err)
		}
	})
	s.sidebar.Attach(func(batch map[string][]index.SidebarItem) {
		if err := s.store.AppendSidebar(batch); err != nil {
			log.Printf("daemon: persisting sidebar items: %v", err)
		}
	})
}

// Handler returns the daemon's HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /load", s.withExpReset(s.handleLoad))
	mux.HandleFunc("POST /implementors", s.withExpReset(s.handleImplementors))
	mux.HandleFunc("POST /sidebar", s.withExpReset(s.handleSidebar))
	mux.HandleFunc("GET /status", s.withExpReset(s.handleStatus))
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

func (s *Server) Stop(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("daemon: shutdown error: %v", err)
			errs = append(errs, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			log.Printf("daemon: listener close error: %v", err)
			errs = append(errs, err)
		}
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		log.Printf("daemon: socket remove error: %v", err)
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		log.Printf("daemon: store close error: %v", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) expire() {
	log.Printf("daemon: expiring due to inactivity")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
	os.Exit(0)
}

func (s *Server) resetExpiration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expTimer != nil {
		s.expTimer.Stop()
		s.expTimer.Reset(s.expiration)
	}
}

func (s *Server) withExpReset(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.resetExpiration()
		handler(w, r)
	}
}

func (s *Server) recordProducers(results []fragment.Result) {
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		if err := s.store.InsertProducer(res.Producer); err != nil {
			log.Printf("daemon: recording producer %s: %v", res.Producer, err)
		}
	}
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req rpc.LoadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Dir == "" && len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "missing dir or files")
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	send := func(line rpc.ProgressLine) bool {
		if line.Message != "" {
			log.Printf("daemon: %s", line.Message)
		}
		if err := enc.Encode(line); err != nil {
			log.Printf("daemon: client disconnected: %v", err)
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	results, err := s.load(r.Context(), req)
	if err != nil {
		send(rpc.ProgressLine{Type: "progress", Message: fmt.Sprintf("load failed: %v", err)})
		return
	}

	send(rpc.ProgressLine{Type: "progress", Message: fmt.Sprintf("loaded %d fragment files", len(results))})
	for _, res := range results {
		line := rpc.LoadResult{
			Path:            res.Path,
			Producer:        res.Producer,
			ImplementorKeys: res.ImplementorKeys,
			SidebarKeys:     res.SidebarKeys,
		}
		if res.Err != nil {
			line.Error = res.Err.Error()
		}
		if !send(rpc.ProgressLine{Type: "result", Result: &line}) {
			return
		}
	}
}

// load runs the loader, deduping concurrent requests for the same target:
// two clients loading the same directory at once must not double-register.
func (s *Server) load(ctx context.Context, req rpc.LoadRequest) ([]fragment.Result, error) {
	key := req.Dir
	if len(req.Files) > 0 {
		sorted := append([]string(nil), req.Files...)
		sort.Strings(sorted)
		key = strings.Join(sorted, "\x00")
	}

	v, err, _ := s.loadGroup.Do(key, func() (interface{}, error) {
		var results []fragment.Result
		var err error
		if len(req.Files) > 0 {
			results, err = s.loader.LoadFiles(ctx, req.Files)
		} else {
			results, err = s.loader.LoadDir(ctx, req.Dir)
		}
		if err != nil {
			return nil, err
		}
		s.recordProducers(results)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]fragment.Result), nil
}

func (s *Server) handleImplementors(w http.ResponseWriter, r *http.Request) {
	var req rpc.ImplementorsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Trait == "" {
		writeError(w, http.StatusBadRequest, "missing trait")
		return
	}

	impls := s.impls.Lookup(req.Trait)
	linkMap := render.DocsLinkMap(impls, s.cfg.Render.DocsBaseURL)
	writeJSON(w, http.StatusOK, rpc.ImplementorsResponse{
		Trait:        req.Trait,
		Implementors: impls,
		Markdown:     render.Implementors(req.Trait, impls, linkMap),
	})
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	var req rpc.SidebarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Module == "" {
		writeError(w, http.StatusBadRequest, "missing module")
		return
	}

	items := s.sidebar.Lookup(req.Module)
	writeJSON(w, http.StatusOK, rpc.SidebarResponse{
		Module:   req.Module,
		Items:    items,
		Groups:   index.GroupByKind(items),
		Markdown: render.Sidebar(req.Module, items),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	implementors, err := s.store.CountImplementors()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sidebarItems, err := s.store.CountSidebarItems()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rpc.StatusResponse{
		Producers:    s.impls.Producers(),
		Traits:       len(s.impls.Traits()),
		Modules:      len(s.sidebar.Modules()),
		Implementors: implementors,
		SidebarItems: sidebarItems,
	})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
		os.Exit(0)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

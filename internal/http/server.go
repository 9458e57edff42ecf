// Package http exposes the group ledger as a JSON API, plus a server-sent
// event stream per group for live change notifications.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"splitledger/internal/cache"
	"splitledger/internal/middleware/ratelimit"
	"splitledger/internal/middleware/trace"
	"splitledger/internal/notify"
	"splitledger/internal/services"
	"splitledger/internal/settlement"
	"splitledger/internal/storage"
)

// Options are the server's runtime knobs, filled from config.
type Options struct {
	Addr               string
	RateLimitPerMinute int
	MemberCacheSize    int
	SSEHeartbeat       time.Duration
}

type Server struct {
	http.Server

	groups   *services.GroupService
	expenses *services.ExpenseService
	chat     *services.ChatService
	recorder *settlement.Recorder
	store    *storage.SQLiteRepository
	registry *notify.Registry
	roster   *cache.RosterCache

	rateLimiter  *ratelimit.Limiter
	heartbeat    time.Duration
	shutdownOnce sync.Once
}

// NewServer wires services, routes and middleware into a ready-to-run
// server. The notifier may deliver to a nil bus; local SSE sessions always
// get events.
func NewServer(opts Options, store *storage.SQLiteRepository, registry *notify.Registry, notifier services.Notifier) *Server {
	if opts.SSEHeartbeat <= 0 {
		opts.SSEHeartbeat = 25 * time.Second
	}
	if opts.MemberCacheSize <= 0 {
		opts.MemberCacheSize = 256
	}

	s := &Server{
		groups:      services.NewGroupService(store),
		expenses:    services.NewExpenseService(store, notifier),
		chat:        services.NewChatService(store, notifier),
		recorder:    settlement.NewRecorder(store, notifier),
		store:       store,
		registry:    registry,
		roster:      cache.NewRosterCache(opts.MemberCacheSize, store.ListMembers),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		heartbeat:   opts.SSEHeartbeat,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/groups", s.handleCreateGroup)
	mux.HandleFunc("GET /api/groups/{groupID}", s.handleGetGroup)
	mux.HandleFunc("POST /api/groups/{groupID}/members", s.handleJoinGroup)
	mux.HandleFunc("GET /api/groups/{groupID}/members", s.handleListMembers)

	mux.HandleFunc("POST /api/groups/{groupID}/expenses", s.handleAddExpense)
	mux.HandleFunc("GET /api/groups/{groupID}/expenses", s.handleListExpenses)
	mux.HandleFunc("DELETE /api/groups/{groupID}/expenses/{expenseID}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/groups/{groupID}/incomes", s.handleAddIncome)
	mux.HandleFunc("GET /api/groups/{groupID}/incomes", s.handleListIncomes)

	mux.HandleFunc("GET /api/groups/{groupID}/balances", s.handleBalances)
	mux.HandleFunc("GET /api/groups/{groupID}/debts", s.handleDebtPlan)
	mux.HandleFunc("POST /api/groups/{groupID}/settlements", s.handleCreateSettlement)
	mux.HandleFunc("GET /api/groups/{groupID}/settlements", s.handleListSettlements)

	mux.HandleFunc("POST /api/groups/{groupID}/chat", s.handlePostChat)
	mux.HandleFunc("GET /api/groups/{groupID}/chat", s.handleChatHistory)
	mux.HandleFunc("GET /api/groups/{groupID}/activity", s.handleActivity)
	mux.HandleFunc("GET /api/groups/{groupID}/events", s.handleEvents)

	traceMW := trace.NewMiddleware()
	handler := traceMW.Middleware(s.rateLimiter.Middleware(trace.ClientIP)(mux))

	s.Server = http.Server{
		Addr:    opts.Addr,
		Handler: handler,
	}
	return s
}

// Shutdown stops the listener and the rate limiter's cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

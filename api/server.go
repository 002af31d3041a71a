// Package api exposes the workflow operations over HTTP. Callers are
// identified by a pluggable resolver; session handling itself lives
// upstream of this subsystem.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/chids04/0xm-relay/errors"
	"github.com/chids04/0xm-relay/ledger"
	"github.com/chids04/0xm-relay/logger"
	"github.com/chids04/0xm-relay/milestone"
	"github.com/chids04/0xm-relay/store"
	"github.com/chids04/0xm-relay/workflow"
)

// Operations is the slice of the workflow service the API serves.
type Operations interface {
	CreateWallet(ctx context.Context, userID string) (*store.Wallet, error)
	WalletAddress(ctx context.Context, userID string) (string, error)
	Balance(ctx context.Context, userID string) (*big.Int, error)
	History(ctx context.Context, userID string) ([]store.RelayedTransaction, error)
	QuoteFee(ctx context.Context, userID string, action ledger.Action) (*ledger.Quote, error)
	CreateMilestone(ctx context.Context, userID string, in workflow.CreateMilestoneInput) (*store.Milestone, error)
	SignMilestone(ctx context.Context, userID, milestoneID string) (*workflow.SignResult, error)
	DeclineMilestone(ctx context.Context, userID, milestoneID string) error
	VerifyMilestone(ctx context.Context, userID, milestoneID string) (*milestone.VerifyResult, error)
	Reconcile(ctx context.Context, milestoneID string) (bool, error)
	Transfer(ctx context.Context, userID, to string, amount *big.Int) (*workflow.TransferResult, error)
	Subscribe(ctx context.Context, userID string, tier ledger.Tier) (string, error)
	MintCertificate(ctx context.Context, userID, milestoneID string, image []byte) (*workflow.MintResult, error)
}

// CallerResolver extracts the verified caller identity from a request.
type CallerResolver func(r *http.Request) (string, error)

// HeaderCallerResolver trusts the X-User-ID header. Suitable behind a
// gateway that has already authenticated the session.
func HeaderCallerResolver(r *http.Request) (string, error) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		return "", errors.New(errors.CodeAuth, "missing caller identity")
	}
	return userID, nil
}

// Server routes HTTP requests to workflow operations.
type Server struct {
	ops     Operations
	caller  CallerResolver
	logger  zerolog.Logger
	handler http.Handler
}

func NewServer(ops Operations, caller CallerResolver, log zerolog.Logger) *Server {
	s := &Server{
		ops:    ops,
		caller: caller,
		logger: logger.Component(log, "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/wallet", s.handleCreateWallet)
		r.Get("/wallet/address", s.handleWalletAddress)
		r.Get("/wallet/balance", s.handleBalance)
		r.Get("/wallet/history", s.handleHistory)

		r.Get("/fees/{action}", s.handleQuoteFee)

		r.Post("/milestones", s.handleCreateMilestone)
		r.Post("/milestones/{id}/sign", s.handleSignMilestone)
		r.Post("/milestones/{id}/decline", s.handleDeclineMilestone)
		r.Get("/milestones/{id}/verify", s.handleVerifyMilestone)
		r.Post("/milestones/{id}/reconcile", s.handleReconcile)
		r.Post("/milestones/{id}/certificate", s.handleMintCertificate)

		r.Post("/transfers", s.handleTransfer)
		r.Post("/subscriptions", s.handleSubscribe)
	})
	s.handler = r
	return s
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks serving the API until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", port).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func (s *Server) writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// writeError renders the stable {code, message} pair. The cause chain is
// logged, never surfaced.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	relayErr := errors.AsRelayError(err, errors.CodeInternal, "internal error")
	s.logger.Warn().Err(err).
		Str("path", r.URL.Path).
		Str("code", string(relayErr.Code)).
		Msg("request failed")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(relayErr.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &errorBody{Code: string(relayErr.Code), Message: relayErr.Message},
	})
}

func (s *Server) resolveCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, err)
		return "", false
	}
	return userID, true
}

func decodeBody(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return errors.New(errors.CodeValidation, "malformed request body").WithCause(err)
	}
	return nil
}

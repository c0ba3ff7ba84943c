// Copyright 2024 The go-trustnet Authors
// This file is part of the go-trustnet library.
//
// The go-trustnet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-trustnet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-trustnet library. If not, see <http://www.gnu.org/licenses/>.

// Package trustapi exposes the registries over HTTP. Mutations are POSTs
// with a JSON body carrying the declared caller address; queries are GETs.
// Transport-level caller authentication is left to the deployment in front
// of this server.
package trustapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/trustnet/go-trustnet/core"
)

// Config holds the HTTP server settings.
type Config struct {
	Host        string
	Port        int
	CORSDomains []string
}

// Server serves the registry API and the websocket event stream.
type Server struct {
	backbone *core.Backbone
	server   *http.Server
	listener net.Listener
}

// NewServer builds the routed handler stack for the backbone.
func NewServer(backbone *core.Backbone, cfg Config) *Server {
	s := &Server{backbone: backbone}

	router := httprouter.New()

	// Identity registry.
	router.POST("/v1/agents", s.handleRegister)
	router.GET("/v1/agents/:id", s.handleAgent)
	router.POST("/v1/agents/:id/uri", s.handleUpdateURI)
	router.POST("/v1/agents/:id/metadata", s.handleSetMetadata)
	router.GET("/v1/agents/:id/metadata/:key", s.handleMetadata)
	router.POST("/v1/agents/:id/wallet", s.handleSetWallet)
	router.POST("/v1/agents/:id/wallet/unset", s.handleUnsetWallet)
	router.POST("/v1/agents/:id/transfer", s.handleTransfer)
	router.POST("/v1/agents/:id/deactivate", s.handleDeactivate)
	router.POST("/v1/agents/:id/reactivate", s.handleReactivate)
	router.POST("/v1/approvals", s.handleSetApproval)

	// Reputation registry.
	router.POST("/v1/agents/:id/feedback", s.handleSubmitFeedback)
	router.GET("/v1/agents/:id/feedback", s.handleFeedbackIndices)
	router.GET("/v1/agents/:id/feedback/summary", s.handleFeedbackSummary)
	router.GET("/v1/agents/:id/feedback/authors", s.handleFeedbackAuthors)
	router.GET("/v1/agents/:id/feedback/items/:index", s.handleFeedbackAt)
	router.POST("/v1/agents/:id/feedback/items/:index/revoke", s.handleRevokeFeedback)
	router.POST("/v1/agents/:id/feedback/items/:index/responses", s.handleRespondFeedback)

	// Validation registry.
	router.POST("/v1/validations", s.handleRequestValidation)
	router.GET("/v1/validations/:id", s.handleValidation)
	router.POST("/v1/validations/:id/complete", s.handleCompleteValidation)
	router.POST("/v1/validations/:id/reject", s.handleRejectValidation)
	router.POST("/v1/validations/:id/cancel", s.handleCancelValidation)
	router.GET("/v1/agents/:id/validations", s.handleValidationsByAgent)
	router.GET("/v1/agents/:id/validations/summary", s.handleValidationSummary)
	router.GET("/v1/validators/:addr/validations", s.handleValidationsByValidator)
	router.GET("/v1/requesters/:addr/validations", s.handleValidationsByRequester)

	// Incident registry.
	router.POST("/v1/incidents", s.handleReportIncident)
	router.GET("/v1/incidents/:id", s.handleIncident)
	router.POST("/v1/incidents/:id/response", s.handleRespondIncident)
	router.POST("/v1/incidents/:id/resolve", s.handleResolveIncident)
	router.GET("/v1/agents/:id/incidents", s.handleIncidentsByAgent)
	router.GET("/v1/agents/:id/incidents/summary", s.handleIncidentSummary)
	router.GET("/v1/reporters/:addr/incidents", s.handleIncidentsByReporter)

	// Event stream.
	router.GET("/v1/events", s.handleEvents)

	var handler http.Handler = router
	if len(cfg.CORSDomains) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSDomains,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         600,
		}).Handler(handler)
	}
	s.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the assembled handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start binds the listener and serves until Stop.
func (s *Server) Start(host string, port int) error {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	s.listener = listener
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("Registry API server failed", "err", err)
		}
	}()
	log.Info("Registry API started", "endpoint", listener.Addr())
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.Warn("Registry API shutdown incomplete", "err", err)
	}
	log.Info("Registry API stopped")
}

// Package testserver runs the full HTTP API over in-memory stores for tests.
package testserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Staby-Guy/pidgeon/internal/api"
	"github.com/Staby-Guy/pidgeon/internal/api/handlers"
	"github.com/Staby-Guy/pidgeon/internal/api/services"
	"github.com/Staby-Guy/pidgeon/internal/config"
	"github.com/Staby-Guy/pidgeon/internal/realtime"
	"github.com/Staby-Guy/pidgeon/internal/repositories/memory"
)

const (
	FrontendURL      = "http://frontend.test"
	PresignPerMinute = 3
)

type Server struct {
	*httptest.Server
	DB     *memory.DB
	Hub    *realtime.Hub
	Tokens *services.Tokens
}

// New starts a server and stops it when the test ends.
func New(t *testing.T) *Server {
	t.Helper()

	db := memory.New()
	hub := realtime.NewHub(realtime.NewLocalTransport())
	events := realtime.NewDispatcher(hub)
	tokens := services.NewTokens("test-secret")

	cfg := config.Config{
		Environment:      "test",
		FrontendURL:      FrontendURL,
		CorsConfig:       config.CorsConfig(FrontendURL),
		PresignPerMinute: PresignPerMinute,
	}
	h := handlers.New(handlers.Deps{
		Accounts: services.NewAccounts(db, nil),
		Contacts: services.NewContacts(db, db, db, db, events, nil),
		Messages: services.NewMessages(db, db, db, events),
		Streams:  services.NewStreams(hub),
		Avatars:  services.NewAvatars(nil),
		Tokens:   tokens,
		Config:   cfg,
	})
	srv := httptest.NewServer(api.NewRouter(h, cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	t.Cleanup(func() {
		// Closing the hub ends open event streams so Close does not block.
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("realtime hub did not stop")
		}
		srv.CloseClientConnections()
		srv.Close()
	})

	return &Server{Server: srv, DB: db, Hub: hub, Tokens: tokens}
}

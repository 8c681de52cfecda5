// Package http implements the HTTP transport for audiobridge.
//
// POST /publish/{topic...} injects a message exactly as if it had been
// published to the broker: the path is the topic and the body the payload.
// Swagger UI for the endpoint is served under /swagger/.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/audiobridge/internal/docs" // registers the OpenAPI spec
	"github.com/nadzzz/audiobridge/internal/message"
	"github.com/nadzzz/audiobridge/internal/transport"
)

const maxPayload = 64 << 10

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port   int
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Routes returns the transport's HTTP handler.
func (t *Transport) Routes(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /publish/{topic...}", func(w http.ResponseWriter, r *http.Request) {
		t.handlePublish(w, r, handler)
	})

	// Swagger UI for the registered OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// PublishResponse acknowledges an accepted message.
type PublishResponse struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
}

// handlePublish processes a POST /publish/{topic} request.
//
// @Summary     Publish a message
// @Description Queues a message for the dispatcher as if it had arrived on the given topic.
// @Description Playback happens asynchronously; the response only confirms the message was queued.
// @Tags        publish
// @Accept      plain
// @Accept      json
// @Produce     json
// @Param       topic    path      string  true  "Full topic, e.g. audio/play/70"
// @Param       payload  body      string  true  "Message payload"
// @Success     202  {object}  PublishResponse  "Message queued"
// @Failure     400  {string}  string  "Unreadable body"
// @Failure     503  {string}  string  "Queue full"
// @Router      /publish/{topic} [post]
func (t *Transport) handlePublish(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayload))
	if err != nil {
		http.Error(w, "reading body: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg := message.New("http", r.PathValue("topic"), payload)
	if err := handler(r.Context(), msg); err != nil {
		slog.Warn("http message not accepted", "message_id", msg.ID, "topic", msg.Topic, "error", err)
		http.Error(w, "not accepted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(PublishResponse{ID: msg.ID, Topic: msg.Topic})
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

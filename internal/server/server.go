package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"

	"github.com/franckalain/barcodenutrition/internal/pipeline"
)

// maxMedia is the most attachments Twilio delivers with one message.
const maxMedia = 10

// Config configures the HTTP transport.
type Config struct {
	WebhookPath string

	// PublicURL and AuthToken enable X-Twilio-Signature validation when
	// AuthToken is set.
	PublicURL string
	AuthToken string
}

type Server struct {
	service    *pipeline.Service
	config     Config
	validator  *client.RequestValidator
	clients    sync.Map
	logger     *zap.Logger
	httpServer *http.Server
}

func New(service *pipeline.Service, cfg Config, logger *zap.Logger) *Server {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/sms"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		service: service,
		config:  cfg,
		logger:  logger,
	}
	if cfg.AuthToken != "" {
		v := client.NewRequestValidator(cfg.AuthToken)
		s.validator = &v
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.WebhookPath, s.handleInbound)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start serves on port until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port string) error {
	s.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger.Info("starting server", zap.String("port", port), zap.String("webhook", s.config.WebhookPath))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked websocket connections are not closed by Shutdown.
	s.clients.Range(func(key, value any) bool {
		value.(*websocket.Conn).Close()
		return true
	})
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// handleInbound answers a Twilio messaging webhook with TwiML.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			params[key] = r.PostForm.Get(key)
		}
		if !s.validator.Validate(s.config.PublicURL+s.config.WebhookPath, params, r.Header.Get("X-Twilio-Signature")) {
			s.logger.Warn("rejected request with invalid signature", zap.String("remote", r.RemoteAddr))
			http.Error(w, "Invalid signature", http.StatusForbidden)
			return
		}
	}

	req := pipeline.Request{
		ID:     r.PostForm.Get("MessageSid"),
		Images: mediaURLs(r),
		Body:   r.PostForm.Get("Body"),
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	resp := s.service.Reply(r.Context(), req)
	s.logger.Info("replied",
		zap.String("request_id", req.ID),
		zap.String("outcome", string(resp.Outcome)),
	)

	body, err := twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: resp.Text}})
	if err != nil {
		s.logger.Error("failed to render TwiML", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// mediaURLs returns MediaUrl0..MediaUrl{NumMedia-1}. A missing or
// unparseable NumMedia counts as no media.
func mediaURLs(r *http.Request) []string {
	numMedia, err := strconv.Atoi(r.PostForm.Get("NumMedia"))
	if err != nil || numMedia <= 0 {
		return nil
	}
	if numMedia > maxMedia {
		numMedia = maxMedia
	}

	urls := make([]string, numMedia)
	for i := range urls {
		urls[i] = r.PostForm.Get(fmt.Sprintf("MediaUrl%d", i))
	}
	return urls
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

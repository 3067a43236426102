// Package bridge connects browser tabs to dialog supervisors over a
// websocket. The page runs speech recognition and synthesis; the server runs
// the dialog.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ibsar/voicedialog/internal/sessions"
	"github.com/ibsar/voicedialog/pkg/dialog"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/nlu"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultReadTimeout  = 75 * time.Second
	defaultWriteTimeout = 5 * time.Second
	maxMessageBytes     = 16 << 10
)

// Options configures a Server. NewBackend, Menus and Sessions are required.
type Options struct {
	Dialog dialog.Config
	// NewBackend returns the API client of one connection; clients carry
	// the signed-in user.
	NewBackend func() dialog.Backend
	Menus      dialog.MenuSource
	Classifier nlu.Classifier
	Journal    dialog.Journal
	Publisher  *events.Publisher
	Runner     dialog.Runner
	Sessions   *sessions.Store

	// AllowedOrigins lists accepted Origin hosts. Empty means same host only.
	AllowedOrigins []string
	// MessagesPerSecond bounds inbound messages per connection.
	MessagesPerSecond float64
	MessageBurst      int

	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server upgrades requests to websockets and runs one supervisor per
// connection.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
}

// NewServer validates o and creates a server.
func NewServer(o Options) (*Server, error) {
	switch {
	case o.NewBackend == nil:
		return nil, fmt.Errorf("%w: backend factory", dialog.ErrMissingCollaborator)
	case o.Menus == nil:
		return nil, fmt.Errorf("%w: menus", dialog.ErrMissingCollaborator)
	case o.Sessions == nil:
		return nil, fmt.Errorf("%w: session store", dialog.ErrMissingCollaborator)
	}
	if o.PingInterval <= 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.MessagesPerSecond <= 0 {
		o.MessagesPerSecond = 20
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 40
	}

	s := &Server{opts: o}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if len(o.AllowedOrigins) > 0 {
		s.upgrader.CheckOrigin = s.checkOrigin
	}
	return s, nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return slices.Contains(s.opts.AllowedOrigins, u.Host) || slices.Contains(s.opts.AllowedOrigins, origin)
}

// ServeHTTP serves one connection until the page goes away. The starting
// location comes from the "location" query parameter.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	location := r.URL.Query().Get("location")
	if location == "" {
		location = "/"
	}
	p := newPeer(ws, location, s.opts.WriteTimeout)
	defer p.close()

	sup, err := dialog.New(s.opts.Dialog, dialog.Deps{
		Recognizer: p,
		Speaker:    p,
		Navigator:  p,
		Focuser:    p,
		Backend:    s.opts.NewBackend(),
		Menus:      s.opts.Menus,
		Classifier: s.opts.Classifier,
		Journal:    s.opts.Journal,
		Publisher:  s.opts.Publisher,
		Runner:     s.opts.Runner,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "creating supervisor", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	log := slog.With(slog.String("connection_id", p.id))

	if err := p.send(Outbound{Type: MsgHello, ConnectionID: p.id, Location: p.Current()}); err != nil {
		log.WarnContext(ctx, "hello failed", slog.String("error", err.Error()))
		return
	}

	s.opts.Sessions.Add(p.id, sup, cancel)
	defer s.opts.Sessions.Remove(p.id)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WarnContext(ctx, "supervisor stopped", slog.String("error", err.Error()))
		}
	}()
	go s.keepAlive(ctx, p, ws)

	log.InfoContext(ctx, "dialog connected", slog.String("location", p.Current()))
	err = s.readLoop(ctx, p, ws, sup)
	cancel()
	p.close()
	<-done

	var ce *websocket.CloseError
	if err != nil && !errors.As(err, &ce) && !errors.Is(err, context.Canceled) {
		log.WarnContext(ctx, "dialog connection failed", slog.String("error", err.Error()))
	}
	log.InfoContext(ctx, "dialog disconnected")
}

// keepAlive pings the page and closes the socket when ctx ends, which
// unblocks the read loop.
func (s *Server) keepAlive(ctx context.Context, p *peer, ws *websocket.Conn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = ws.Close()
			return
		case <-ticker.C:
			if err := p.ping(); err != nil {
				_ = ws.Close()
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, p *peer, ws *websocket.Conn, sup *dialog.Supervisor) error {
	ws.SetReadLimit(maxMessageBytes)
	deadline := func() error { return ws.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)) }
	if err := deadline(); err != nil {
		return err
	}
	ws.SetPongHandler(func(string) error { return deadline() })

	limiter := rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.MessageBurst)
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := deadline(); err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		if !limiter.Allow() {
			slog.WarnContext(ctx, "dropping message over rate", slog.String("connection_id", p.id))
			continue
		}

		var msg Inbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			slog.DebugContext(ctx, "malformed message", slog.String("error", err.Error()))
			continue
		}
		s.opts.Sessions.Touch(p.id)
		s.dispatch(p, sup, msg)
	}
}

func (s *Server) dispatch(p *peer, sup *dialog.Supervisor, msg Inbound) {
	switch msg.Type {
	case MsgTranscript:
		sup.PushTranscript(msg.Text, msg.Final)
	case MsgKey:
		sup.PushKey(msg.Key)
	case MsgRecognitionError:
		sup.PushRecognitionError(msg.Error)
	case MsgLocation:
		p.visit(msg.Location)
		sup.NotifyLocation(msg.Location)
	case MsgSpoken:
		p.spoken(msg.ID, msg.Error)
	}
}

package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/coedit-server/internal/config"
	"github.com/vovakirdan/coedit-server/internal/core"
	"github.com/vovakirdan/coedit-server/internal/proto"
)

var errIdleTimeout = errors.New("idle timeout")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	cfg *config.Config
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient("")
	if err := h.hub.RegisterClient(client); err != nil {
		conn.Close(websocket.StatusTryAgainLater, "server shutting down")
		return
	}
	defer h.hub.UnregisterClient(client)

	h.log.Debug().Str("conn_id", client.ID).Str("remote", r.RemoteAddr).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	status, reason := h.closeStatus(client, err)
	// Close before canceling so the pending read ends on the close handshake.
	conn.Close(status, reason)
	cancel()
	<-errCh
}

func (h *WSHandler) closeStatus(client *core.Client, err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errIdleTimeout):
		h.log.Info().Str("conn_id", client.ID).Msg("closing idle connection")
		return websocket.StatusNormalClosure, "idle timeout"
	}

	s := websocket.CloseStatus(err)
	if s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
		return websocket.StatusNormalClosure, "closing"
	}
	h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
	if s != -1 {
		return s, "connection error"
	}
	return websocket.StatusInternalError, "connection error"
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.RateLimit)
	limiter.startReset(ctx.Done())

	for {
		data, err := h.read(ctx, conn)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			h.log.Warn().Str("conn_id", client.ID).Msg("rate limit exceeded, dropping message")
			continue
		}

		msg, err := proto.Decode(data)
		if err != nil {
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("failed to decode inbound")
			continue
		}
		cmd, err := proto.ToCommand(msg)
		if err != nil {
			if errors.Is(err, proto.ErrUnknownKind) {
				h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("ignoring message")
			} else {
				h.log.Warn().Err(err).Str("conn_id", client.ID).Str("kind", msg.Kind).Msg("failed to map inbound")
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// read returns the next frame, bounded by the idle timeout when one is set.
func (h *WSHandler) read(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	if h.cfg.IdleTimeout <= 0 {
		_, data, err := conn.Read(ctx)
		return data, err
	}

	readCtx, cancel := context.WithTimeout(ctx, h.cfg.IdleTimeout)
	defer cancel()

	_, data, err := conn.Read(readCtx)
	if err != nil && ctx.Err() == nil && errors.Is(readCtx.Err(), context.DeadlineExceeded) {
		return nil, errIdleTimeout
	}
	return data, err
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			msg, err := proto.FromEvent(event)
			if err != nil {
				h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("failed to encode event")
				continue
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

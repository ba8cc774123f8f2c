// Package stream maintains the WebSocket connection to the backend's
// event stream, decoding envelopes into bus events for the sync engine
// and driving the connection state machine as the link comes and goes.
package stream

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dkzef/chirp/internal/bus"
	"github.com/dkzef/chirp/internal/status"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 << 10

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Receiver dials /v1/stream and keeps it alive, reconnecting with
// exponential backoff when the connection drops.
type Receiver struct {
	url    string
	token  func() string // Authorization header value, empty to skip
	bus    *bus.Bus
	sm     *status.Machine
	log    *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a receiver for the backend at serverURL (http or https;
// the scheme is rewritten for the WebSocket dial).
func New(serverURL string, token func() string, b *bus.Bus, sm *status.Machine, log *zap.Logger) (*Receiver, error) {
	u, err := streamURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &Receiver{
		url:   u,
		token: token,
		bus:   b,
		sm:    sm,
		log:   log.Named("stream"),
	}, nil
}

func streamURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/stream"
	return u.String(), nil
}

// Start launches the connect loop in the background.
func (r *Receiver) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx)
}

// Stop tears down the connection and waits for the loop to exit.
func (r *Receiver) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Receiver) run(ctx context.Context) {
	defer close(r.done)

	var backoff time.Duration
	for {
		if ctx.Err() != nil {
			return
		}

		connected, err := r.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}

		backoff = nextBackoff(backoff, connected)
		r.bus.Publish(bus.E(bus.KindStreamDisconnected, err))
		r.transition(status.Reconnecting)
		r.log.Warn("stream disconnected",
			zap.Error(err),
			zap.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// nextBackoff returns the delay before the next dial attempt. A drop
// after a session that actually connected retries at the minimum;
// repeated dial failures double the previous delay up to reconnectMax.
func nextBackoff(prev time.Duration, connected bool) time.Duration {
	if connected || prev == 0 {
		return reconnectMin
	}
	return min(prev*2, reconnectMax)
}

func (r *Receiver) connectAndRead(ctx context.Context) (bool, error) {
	header := http.Header{}
	if r.token != nil {
		if bearer := r.token(); bearer != "" {
			header.Set("Authorization", bearer)
		}
	}

	r.transition(status.Connecting)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, r.url, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			r.transition(status.AuthRequired)
		}
		return false, err
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	r.transition(status.Syncing)
	r.bus.Publish(bus.E(bus.KindStreamConnected, nil))
	r.log.Info("stream connected", zap.String("url", r.url))

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go r.pingLoop(pingCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		r.dispatch(data)
	}
}

func (r *Receiver) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// dispatch maps a wire envelope onto a bus event. Unknown kinds are
// logged and dropped so old clients survive new server events.
func (r *Receiver) dispatch(data []byte) {
	env, kind, err := DecodeEnvelope(data)
	if err != nil {
		r.log.Warn("bad stream frame", zap.Error(err))
		return
	}
	if kind == "" {
		r.log.Warn("unknown stream event", zap.String("kind", env.Kind))
		return
	}
	r.bus.Publish(bus.E(kind, env))
}

func (r *Receiver) transition(to status.State) {
	if r.sm == nil {
		return
	}
	if err := r.sm.Transition(to); err != nil {
		r.log.Debug("state transition skipped", zap.Error(err))
	}
}

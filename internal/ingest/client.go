package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Handler receives every relevant round frame in arrival order.
type Handler interface {
	HandleRound(ctx context.Context, msg *RoundMessage) error
}

// Stats counts listener activity since start.
type Stats struct {
	Frames      uint64
	Rounds      uint64
	Settlements uint64
	Dropped     uint64
	DecodeErrs  uint64
	Reconnects  uint64
}

// Listener maintains one websocket connection to the game feed, forwarding
// settling and settled round frames to the handler. A broken connection is
// redialed after a fixed delay until the context is cancelled.
type Listener struct {
	url            string
	reconnectDelay time.Duration
	handler        Handler

	mu    sync.Mutex
	stats Stats
}

func NewListener(url string, reconnectDelay time.Duration, handler Handler) *Listener {
	return &Listener{
		url:            url,
		reconnectDelay: reconnectDelay,
		handler:        handler,
	}
}

// Stats returns a snapshot of the listener counters.
func (l *Listener) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Listener) count(update func(*Stats)) {
	l.mu.Lock()
	update(&l.stats)
	l.mu.Unlock()
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.session(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("feed session ended, reconnecting")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		l.count(func(s *Stats) { s.Reconnects++ })
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.reconnectDelay):
		}
	}
}

// session dials, performs the registration handshake and pumps frames until
// the connection breaks or the context is cancelled.
func (l *Listener) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, l.url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Closing the connection is the only way to unblock ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(handshake())); err != nil {
		return err
	}
	log.WithField("url", l.url).Info("feed connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		l.count(func(s *Stats) { s.Frames++ })

		msg, ok, err := ParseFrame(raw, time.Now())
		if err != nil {
			l.count(func(s *Stats) { s.DecodeErrs++ })
			log.WithError(err).Debug("unparseable feed frame")
			continue
		}
		if !ok {
			l.count(func(s *Stats) { s.Dropped++ })
			continue
		}

		l.count(func(s *Stats) {
			s.Rounds++
			if msg.Status == StatusSettled {
				s.Settlements++
			}
		})

		if err := l.handler.HandleRound(ctx, msg); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"round_id": msg.RoundID,
				"status":   msg.Status,
			}).Error("round frame handling failed")
		}
	}
}

// handshake builds the registration message: a fixed prefix plus 32 random
// hex characters identifying this session.
func handshake() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		for i := range buf {
			buf[i] = byte(i)
		}
	}
	return handshakePrefix + hex.EncodeToString(buf)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/user/securemsg/internal/metrics"
	"github.com/user/securemsg/internal/observability/logger"
	"github.com/user/securemsg/internal/prime"
)

const (
	// MaxStreamCount caps the primes one stream session may request.
	MaxStreamCount = 100
	// MaxStreamBits caps the prime width a stream session may request.
	MaxStreamBits = 4096
)

const writeWait = 10 * time.Second

// StreamFrame is one websocket message of a prime stream session.
type StreamFrame struct {
	Type      string `json:"type"` // prime | done | error
	Session   string `json:"session"`
	Index     int    `json:"index,omitempty"`
	Bits      int    `json:"bits"`
	Value     string `json:"value,omitempty"`
	Count     int    `json:"count,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

func parseStreamQuery(r *http.Request) (bits, count int, err error) {
	q := r.URL.Query()
	bits, err = strconv.Atoi(q.Get("bits"))
	if err != nil {
		return 0, 0, fmt.Errorf("bits: %w", err)
	}
	if err := prime.ValidateBits(bits); err != nil {
		return 0, 0, err
	}
	if bits > MaxStreamBits {
		return 0, 0, fmt.Errorf("bits must not exceed %d", MaxStreamBits)
	}

	count = 1
	if raw := q.Get("count"); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("count: %w", err)
		}
	}
	if count < 1 || count > MaxStreamCount {
		return 0, 0, fmt.Errorf("count must be between 1 and %d", MaxStreamCount)
	}
	return bits, count, nil
}

// handlePrimeStream generates count primes of the requested size and sends each one as it is
// found. The session ends with a done or error frame, or when the client disconnects.
func (s *Server) handlePrimeStream(w http.ResponseWriter, r *http.Request) {
	bits, count, err := parseStreamQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", logger.Err(err))
		return
	}
	defer conn.Close()

	metrics.PrimeStreams.Inc()
	defer metrics.PrimeStreams.Dec()

	session := uuid.NewString()
	log := s.log.With(zap.String("session", session), logger.Bits(bits))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// The read side only exists to notice the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(f StreamFrame) error {
		f.Session = session
		f.Bits = bits
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f)
	}

	start := time.Now()
	err = s.primes.GenerateN(ctx, bits, count, func(i int, p *big.Int) error {
		return send(StreamFrame{
			Type:      "prime",
			Index:     i,
			Value:     p.String(),
			ElapsedMS: time.Since(start).Milliseconds(),
		})
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		_ = send(StreamFrame{Type: "done", Count: count, ElapsedMS: elapsed.Milliseconds()})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		log.Info("prime stream finished", zap.Int("count", count), logger.Duration(elapsed))
	case errors.Is(err, context.Canceled):
		log.Debug("prime stream cancelled", logger.Duration(elapsed))
	default:
		_ = send(StreamFrame{Type: "error", Error: err.Error(), ElapsedMS: elapsed.Milliseconds()})
		log.Warn("prime stream failed", logger.Err(err))
	}
}

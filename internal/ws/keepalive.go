package ws

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leonvanzyl/autocoder-chat/internal/infrastructure/logging"
)

// DefaultKeepaliveInterval keeps idle proxies from dropping the connection
const DefaultKeepaliveInterval = 30 * time.Second

// Keepalive sends a liveness ping on a fixed interval while running
type Keepalive struct {
	interval time.Duration
	send     func() error
	logger   *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewKeepalive creates a stopped keepalive driver
func NewKeepalive(interval time.Duration, send func() error, logger *zap.Logger) *Keepalive {
	if interval <= 0 {
		interval = DefaultKeepaliveInterval
	}
	return &Keepalive{
		interval: interval,
		send:     send,
		logger:   logging.OrNop(logger),
	}
}

// Start begins sending pings. Starting a running driver is a no-op.
func (k *Keepalive) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.stop != nil {
		return
	}
	k.stop = make(chan struct{})
	k.done = make(chan struct{})
	go k.run(k.stop, k.done)
}

func (k *Keepalive) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := k.send(); err != nil {
				k.logger.Debug("keepalive ping failed", zap.Error(err))
			}
		}
	}
}

// Stop halts the driver without waiting for an in-flight ping.
// It returns a channel closed once the driver goroutine has exited.
func (k *Keepalive) Stop() <-chan struct{} {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.stop == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	close(k.stop)
	done := k.done
	k.stop = nil
	k.done = nil
	return done
}

// Running reports whether the driver is started
func (k *Keepalive) Running() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stop != nil
}

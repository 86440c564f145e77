package ssadmin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docspp/docspp/internal/logger"
	"github.com/docspp/docspp/pkg/wireproto"
)

// defaultHeartbeatInterval is the cadence between REGISTER sends when
// the config leaves it unset.
const defaultHeartbeatInterval = 20 * time.Second

// HeartbeatConfig identifies this SS to the NM's registration channel.
type HeartbeatConfig struct {
	NMHost string
	NMPort int

	SSID        string
	ClientPort  int
	AdminPort   int
	AdvertiseIP string

	Interval time.Duration // 0 uses defaultHeartbeatInterval
}

// Heartbeat periodically sends REGISTER to the NM's registration
// channel, as a cancellable ticker loop joined on Stop.
type Heartbeat struct {
	cfg HeartbeatConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeat builds a Heartbeat sender; it does not start sending
// until Start is called.
func NewHeartbeat(cfg HeartbeatConfig) *Heartbeat {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHeartbeatInterval
	}
	return &Heartbeat{cfg: cfg}
}

// Start begins the background REGISTER loop, sending one heartbeat
// immediately and then every cfg.Interval until Stop is called or ctx
// is cancelled.
func (h *Heartbeat) Start(ctx context.Context) {
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.wg.Add(1)
	go h.run()
}

// Stop cancels the loop and waits for it to exit.
func (h *Heartbeat) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.wg.Wait()
}

func (h *Heartbeat) run() {
	defer h.wg.Done()

	h.send()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.send()
		}
	}
}

func (h *Heartbeat) send() {
	advertiseIP := h.cfg.AdvertiseIP
	if advertiseIP == "" {
		advertiseIP = "0.0.0.0"
	}

	conn, err := wireproto.Dial(h.cfg.NMHost, h.cfg.NMPort)
	if err != nil {
		logger.Info("SS heartbeat: NM unreachable", logger.Op("REGISTER"), logger.Err(err))
		return
	}
	defer conn.Close()

	line := fmt.Sprintf("REGISTER %s %d %d %s", h.cfg.SSID, h.cfg.ClientPort, h.cfg.AdminPort, advertiseIP)
	if err := conn.SendLine(line); err != nil {
		logger.Info("SS heartbeat: send failed", logger.Op("REGISTER"), logger.Err(err))
		return
	}
	if _, err := conn.RecvLine(); err != nil {
		logger.Info("SS heartbeat: no reply", logger.Op("REGISTER"), logger.Err(err))
	}
}

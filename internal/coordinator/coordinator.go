package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/bilbercode/ezviz-bridge/internal/ezviz"
)

var (
	refreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "refreshes",
		Namespace: "ezviz_bridge",
		Help:      "number of successful coordinator refreshes",
	})
	refreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "refresh_errors",
		Namespace: "ezviz_bridge",
		Help:      "number of failed coordinator refreshes",
	})
)

// Coordinator polls the EZVIZ cloud and holds the latest snapshot for every entity to read.
type Coordinator struct {
	sync.RWMutex
	client   ezviz.Service
	interval time.Duration
	data     *Snapshot

	subMu       sync.Mutex
	subscribers map[string]func(*Snapshot)
}

func New(client ezviz.Service, interval time.Duration) *Coordinator {
	return &Coordinator{
		client:      client,
		interval:    interval,
		data:        NewSnapshot(),
		subscribers: make(map[string]func(*Snapshot)),
	}
}

func (c *Coordinator) Client() ezviz.Service {
	return c.client
}

func (c *Coordinator) Data() *Snapshot {
	c.RLock()
	defer c.RUnlock()
	return c.data
}

// Refresh replaces the snapshot. The previous snapshot is kept when the cloud query fails.
func (c *Coordinator) Refresh(ctx context.Context) error {
	cameras, err := c.client.LoadCameras(ctx)
	if err != nil {
		refreshErrors.Inc()
		return fmt.Errorf("failed to load cameras from ezviz: %w", err)
	}

	snapshot := NewSnapshot()
	for _, camera := range cameras {
		snapshot.Set(camera.Serial, camera.Attributes)
	}

	c.Lock()
	c.data = snapshot
	c.Unlock()
	refreshes.Inc()

	c.subMu.Lock()
	handlers := make([]func(*Snapshot), 0, len(c.subscribers))
	for _, h := range c.subscribers {
		handlers = append(handlers, h)
	}
	c.subMu.Unlock()

	for _, h := range handlers {
		h(snapshot)
	}
	return nil
}

// Start refreshes on every interval until ctx is done. Refresh failures are logged, not fatal.
func (c *Coordinator) Start(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := c.Refresh(ctx)
			if err != nil {
				log.WithError(err).Warn("coordinator refresh failed")
				continue
			}
			log.Debugf("coordinator refreshed %d devices", c.Data().Len())
		}
	}
}

func (c *Coordinator) Subscribe(f func(*Snapshot)) func() {
	id := uuid.NewString()
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers[id] = f
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subscribers, id)
	}
}

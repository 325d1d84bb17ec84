// Package feed consumes live telemetry from a NATS subject and pushes it
// through the same normalize, resolve and write stages the file loaders use.
// Messages accumulate into batches flushed on size or interval, so the
// relational store sees the same page-sized upserts either way.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"zev_ingest/internal/fleet"
	"zev_ingest/internal/loaders"
	"zev_ingest/internal/normalize"
	"zev_ingest/internal/resolve"
)

// Message is the flat JSON shape producers publish. Readings are optional;
// the timestamp may be RFC3339 or naive wall clock in the consumer's zone.
type Message struct {
	Fleet     string   `json:"fleet"`
	Vehicle   string   `json:"vehicle"`
	Timestamp string   `json:"timestamp"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Mileage   *float64 `json:"mileage,omitempty"`
	SOC       *float64 `json:"soc,omitempty"`
	Elevation *float64 `json:"elevation,omitempty"`
	KeyOnTime *float64 `json:"key_on_time,omitempty"`
}

// Config holds the consumer settings.
type Config struct {
	URL           string
	Subject       string
	Queue         string
	BatchSize     int
	FlushInterval time.Duration
	Zone          *time.Location // zone applied to naive timestamps
	IdentityTTL   time.Duration  // how long resolved fleet rosters are cached
}

// DefaultConfig returns local development settings.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Subject:       "fleet.telemetry.>",
		Queue:         "zevingest",
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
		Zone:          time.UTC,
		IdentityTTL:   5 * time.Minute,
	}
}

type cachedIdentity struct {
	ident   *resolve.Identity
	fetched time.Time
}

type counters struct {
	received   int
	badPayload int
	badTime    int
	noFleet    int
	noVehicle  int
}

// Consumer subscribes to the telemetry subject and writes batches through
// the shared Env.
type Consumer struct {
	cfg Config
	env *loaders.Env

	kick chan struct{} // signalled when a buffer reaches BatchSize

	mu      sync.Mutex
	pending map[string][]fleet.TelemetryPoint // keyed by fleet name
	idents  map[string]cachedIdentity
	count   counters
}

func NewConsumer(cfg Config, env *loaders.Env) *Consumer {
	if cfg.Zone == nil {
		cfg.Zone = time.UTC
	}
	return &Consumer{
		cfg:     cfg,
		env:     env,
		kick:    make(chan struct{}, 1),
		pending: map[string][]fleet.TelemetryPoint{},
		idents:  map[string]cachedIdentity{},
	}
}

// Run connects, consumes until ctx is cancelled, then drains and flushes
// whatever is still buffered.
func (c *Consumer) Run(ctx context.Context) error {
	conn, err := nats.Connect(c.cfg.URL,
		nats.Name("zevingest-feed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	sub, err := conn.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, func(msg *nats.Msg) {
		c.handle(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.Subject, err)
	}

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	fmt.Fprintf(os.Stderr, "feed: consuming %s (queue %s)\n", c.cfg.Subject, c.cfg.Queue)
	for {
		select {
		case <-ticker.C:
			if err := c.Flush(ctx); err != nil {
				return err
			}
		case <-c.kick:
			if err := c.Flush(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			if err := sub.Drain(); err != nil {
				fmt.Fprintf(os.Stderr, "feed: drain: %v\n", err)
			}
			// A last flush picks up what drain delivered.
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return c.Flush(flushCtx)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count.received++

	var m Message
	if err := json.Unmarshal(data, &m); err != nil || m.Fleet == "" || m.Vehicle == "" {
		c.count.badPayload++
		return
	}
	ts, _ := normalize.LocalTimeUTC(m.Timestamp, c.cfg.Zone)
	if ts == nil {
		c.count.badTime++
		return
	}
	ident, err := c.identityLocked(ctx, m.Fleet)
	if err != nil {
		c.count.noFleet++
		return
	}
	vehID, ok := ident.Vehicles[m.Vehicle]
	if !ok {
		c.count.noVehicle++
		return
	}

	p := fleet.TelemetryPoint{
		VehicleID: vehID,
		Timestamp: *ts,
		Latitude:  m.Latitude,
		Longitude: m.Longitude,
		Speed:     m.Speed,
		Mileage:   m.Mileage,
		Elevation: m.Elevation,
		KeyOnTime: m.KeyOnTime,
	}
	if m.SOC != nil {
		v := normalize.FractionValue(*m.SOC)
		p.SOC = &v
	}
	c.pending[m.Fleet] = append(c.pending[m.Fleet], p)
	if len(c.pending[m.Fleet]) >= c.cfg.BatchSize {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// identityLocked returns the cached roster for a fleet, refreshing it when
// stale so newly provisioned vehicles start matching without a restart.
func (c *Consumer) identityLocked(ctx context.Context, fleetName string) (*resolve.Identity, error) {
	if cached, ok := c.idents[fleetName]; ok && time.Since(cached.fetched) < c.cfg.IdentityTTL {
		return cached.ident, nil
	}
	ident, err := resolve.Fleet(ctx, c.env.Store, fleetName, resolve.Open, nil, nil)
	if err != nil {
		return nil, err
	}
	c.idents[fleetName] = cachedIdentity{ident: ident, fetched: time.Now()}
	return ident, nil
}

// Flush writes every buffered batch and prints the interval's counters.
func (c *Consumer) Flush(ctx context.Context) error {
	c.mu.Lock()
	batches := c.pending
	count := c.count
	c.pending = map[string][]fleet.TelemetryPoint{}
	c.count = counters{}
	c.mu.Unlock()

	if count.received == 0 {
		return nil
	}

	var total fleet.WriteStats
	for fleetName, pts := range batches {
		loaders.SortTelemetry(pts)
		pts, _ = loaders.DedupTelemetry(pts)

		if err := c.env.ArchiveTelemetry(ctx, fleetName, pts); err != nil {
			return err
		}
		st, err := c.env.Store.UpsertTelemetry(ctx, pts)
		if err != nil {
			return fmt.Errorf("flush %s: %w", fleetName, err)
		}
		total.Add(st)
	}

	fmt.Fprintf(os.Stderr,
		"feed: received=%d written(ins=%d upd=%d unchanged=%d) dropped(payload=%d time=%d fleet=%d vehicle=%d)\n",
		count.received, total.Inserted, total.Updated, total.SkippedUnchanged,
		count.badPayload, count.badTime, count.noFleet, count.noVehicle)
	return nil
}

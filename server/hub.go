// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/SoftbearStudios/hexvoxel/server/chunk"
	"github.com/SoftbearStudios/hexvoxel/server/cloud/db"
	"github.com/SoftbearStudios/hexvoxel/server/registry"
	"github.com/SoftbearStudios/hexvoxel/server/terrain"
	"github.com/SoftbearStudios/hexvoxel/server/terrain/noise"
	"github.com/SoftbearStudios/hexvoxel/server/world"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

const (
	debugPeriod  = time.Second * 5
	statusPeriod = time.Second
	updatePeriod = world.TickPeriod

	// storeTimeout bounds registry requests.
	storeTimeout = 10 * time.Second
	// closeTimeout bounds saving a world when its session ends.
	closeTimeout = 30 * time.Second
)

// HubOptions configure a Hub. Database is required.
type HubOptions struct {
	Database db.Database
	Logger   logrus.FieldLogger

	// NewSource creates the generator of a world. Defaults to perlin noise.
	NewSource func(seed int64) terrain.Source
	// Mesher defaults to a HeadlessMesher.
	Mesher chunk.MeshBuilder

	RenderDistance int
	LODDistance    int
	MaxInflight    int
	FlushPeriod    time.Duration
	Backoff        func() backoff.BackOff
}

// Hub owns every open world and the clients viewing them.
// All world state is accessed from the goroutine running Run.
type Hub struct {
	options  HubOptions
	registry *registry.Registry
	logger   logrus.FieldLogger

	clients ClientList
	// sessions by world id; a world is open for at most one client.
	sessions map[string]*Session
	// closing is closed when a world's last session has finished saving.
	closing map[string]chan struct{}

	// Served atomically by HTTP
	statusJSON atomic.Value

	// Inbound channels
	inbound    chan SignedInbound
	register   chan Client
	unregister chan Client
	callbacks  chan func()
	stop       chan stopRequest
	done       chan struct{}

	// Timer based events
	updateTicker *time.Ticker
	updateTime   time.Time
	statusTicker *time.Ticker
	debugTicker  *time.Ticker
}

type stopRequest struct {
	ctx  context.Context
	done chan error
}

func NewHub(options HubOptions) *Hub {
	if options.Logger == nil {
		options.Logger = logrus.StandardLogger()
	}
	if options.NewSource == nil {
		options.NewSource = func(seed int64) terrain.Source {
			return noise.New(seed)
		}
	}
	if options.Mesher == nil {
		options.Mesher = &HeadlessMesher{}
	}

	logger := options.Logger.WithField("component", "hub")

	return &Hub{
		options:      options,
		registry:     registry.New(options.Database, options.Logger),
		logger:       logger,
		sessions:     make(map[string]*Session),
		closing:      make(map[string]chan struct{}),
		inbound:      make(chan SignedInbound, 64),
		register:     make(chan Client, 8),
		unregister:   make(chan Client, 16),
		callbacks:    make(chan func(), 16),
		stop:         make(chan stopRequest),
		done:         make(chan struct{}),
		updateTicker: time.NewTicker(updatePeriod),
		updateTime:   time.Now(),
		statusTicker: time.NewTicker(statusPeriod),
		debugTicker:  time.NewTicker(debugPeriod),
	}
}

// Run processes clients and ticks open worlds until Shutdown.
func (h *Hub) Run() {
	defer func() {
		h.updateTicker.Stop()
		h.statusTicker.Stop()
		h.debugTicker.Stop()
		close(h.done)
	}()

	h.Status()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			if client.Data().Hub != h {
				break
			}
			client.Close()
			h.closeSession(client)
			client.Data().Hub = nil
			h.clients.Remove(client)
		case in := <-h.inbound:
			// Read all messages currently in the channel
			n := len(h.inbound)

			for {
				// A client's registration is sent before its messages.
				h.drainRegister()

				// If not same hub the client is gone
				if h == in.Client.Data().Hub {
					in.Process(h, in.Client)
				}

				if n--; n < 0 {
					break
				}

				in = <-h.inbound
			}
		case callback := <-h.callbacks:
			callback()
		case <-h.updateTicker.C:
			now := time.Now()
			delta := now.Sub(h.updateTime)
			h.updateTime = now
			h.Update(delta)
		case <-h.statusTicker.C:
			h.Status()
		case <-h.debugTicker.C:
			h.Debug()
		case request := <-h.stop:
			request.done <- h.shutdown(request.ctx)
			return
		}
	}
}

func (h *Hub) registerClient(client Client) {
	h.clients.Add(client)
	client.Data().Hub = h
	client.Init()
}

func (h *Hub) drainRegister() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		default:
			return
		}
	}
}

// Register adds a client. It may be called from any goroutine. Messages
// received from the client after Register returns are processed after it is added.
func (h *Hub) Register(client Client) {
	h.register <- client
}

// Unregister removes a client. It may be called from any goroutine.
func (h *Hub) Unregister(client Client) {
	h.unregister <- client
}

// ReceiveSigned queues a request. It may be called from any goroutine.
func (h *Hub) ReceiveSigned(in SignedInbound) {
	h.inbound <- in
}

// Shutdown ends every session, waits for open worlds to be saved and stops Run.
func (h *Hub) Shutdown(ctx context.Context) error {
	request := stopRequest{ctx: ctx, done: make(chan error, 1)}

	select {
	case h.stop <- request:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-request.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) shutdown(ctx context.Context) error {
	for client := h.clients.First; client != nil; client = client.Data().Next {
		h.closeSession(client)
	}

	for worldID, done := range h.closing {
		select {
		case <-done:
		case <-ctx.Done():
			h.logger.WithField("world", worldID).Error("gave up waiting for world to save")
			return ctx.Err()
		}
	}

	h.logger.Info("hub stopped")
	return nil
}

// Update ticks every open world.
func (h *Hub) Update(delta time.Duration) {
	for _, session := range h.sessions {
		session.Cache.Update(delta)
	}
}

// async runs work on another goroutine, then runs the function it returns, if
// any, on the hub goroutine.
func (h *Hub) async(work func(ctx context.Context) func()) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		callback := work(ctx)
		if callback == nil {
			return
		}

		select {
		case h.callbacks <- callback:
		case <-h.done:
		}
	}()
}

// reply sends a message if the client is still connected. Must be called on the hub goroutine.
func (h *Hub) reply(client Client, out Outbound) {
	if client.Data().Hub == h {
		client.Send(out)
	}
}

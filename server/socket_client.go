// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 5 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 8) / 10

	// If more than this many messages are queued for sending, the
	// socket is congested and status messages are dropped
	socketCongestionThreshold = 5

	socketBufferSize = 16

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: time.Second,
	ReadBufferSize:   maxMessageSize,
	WriteBufferSize:  4096,
}

// SocketClient is a middleman between the websocket connection and the hub.
type SocketClient struct {
	ClientData
	conn   *websocket.Conn
	send   chan Outbound
	once   sync.Once
	logger logrus.FieldLogger
	// hub is set once by Init, since ClientData.Hub is cleared on unregister.
	hub *Hub
}

// NewSocketClient creates a SocketClient from a connection.
func NewSocketClient(conn *websocket.Conn, logger logrus.FieldLogger) *SocketClient {
	return &SocketClient{
		conn:   conn,
		send:   make(chan Outbound, socketBufferSize),
		logger: logger.WithField("remote", conn.RemoteAddr().String()),
	}
}

func (client *SocketClient) Close() {
	close(client.send)
}

func (client *SocketClient) Data() *ClientData {
	return &client.ClientData
}

func (client *SocketClient) Destroy() {
	client.once.Do(func() {
		hub := client.hub

		// Needs to go through when called on hub goroutine.
		select {
		case hub.unregister <- client:
		default:
			go func() {
				hub.unregister <- client
			}()
		}

		_ = client.conn.Close()
	})
}

func (client *SocketClient) Init() {
	client.hub = client.Hub
	go client.writePump()
	go client.readPump()
}

func (client *SocketClient) Send(message Outbound) {
	// Statuses are periodic so dropping some is harmless
	if _, ok := message.(Status); ok && len(client.send) > socketCongestionThreshold {
		client.logger.Debug("dropping status due to congestion")
		return
	}

	select {
	case client.send <- message:
	default:
		client.logger.Warn("socket client is not responsive")
		client.Destroy()
	}
}

func (client *SocketClient) readPump() {
	defer client.Destroy()
	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, r, err := client.conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				client.logger.WithError(err).Info("close error")
			}
			break
		}

		var message Message
		err = JSON.NewDecoder(r).Decode(&message)
		if err != nil {
			client.logger.WithError(err).Info("unmarshal error")
			break
		}

		if invalid, ok := message.Data.(InvalidInbound); ok {
			client.logger.WithField("type", invalid.messageType).Info("invalid message type received")
			continue
		}
		client.hub.ReceiveSigned(SignedInbound{Client: client, Inbound: message.Data.(Inbound)})
	}
}

func (client *SocketClient) writePump() {
	pingTicker := time.NewTicker(pingPeriod)

	defer func() {
		if err := recover(); err != nil {
			client.logger.WithField("error", err).Debug("send error")
		}
		pingTicker.Stop()
		client.Destroy()
	}()

	for {
		select {
		case out, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = client.conn.WriteMessage(websocket.CloseMessage, nil)
				panic("hub closed channel")
			}

			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				panic(err)
			}

			// Wrap with Message to marshal type
			if err = JSON.NewEncoder(w).Encode(Message{Data: out}); err != nil {
				panic(err)
			}

			if err = w.Close(); err != nil {
				panic(err)
			}
		case <-pingTicker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Copyright 2024 The go-trustnet Authors
// This file is part of the go-trustnet library.
//
// The go-trustnet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-trustnet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-trustnet library. If not, see <http://www.gnu.org/licenses/>.

package trustapi

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/trustnet/go-trustnet/core/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second

	// wsEventBuffer bounds how far a slow client may lag before pumpEvents
	// drops it. The pump never blocks the publishing feed.
	wsEventBuffer = 256
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is enforced by the CORS layer in front of the router.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsEvent is the wire shape of one streamed notification.
type wsEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// pumpEvents moves notifications from the subscription channel into out
// without ever blocking the sender. The returned channel is closed once out
// is full, signalling that the consumer has fallen too far behind.
func pumpEvents(in <-chan types.Notification, out chan<- types.Notification, done <-chan struct{}) <-chan struct{} {
	overflow := make(chan struct{})
	go func() {
		for {
			select {
			case n := <-in:
				select {
				case out <- n:
				default:
					close(overflow)
					return
				}
			case <-done:
				return
			}
		}
	}()
	return overflow
}

// handleEvents upgrades the connection and streams every registry event
// until the client goes away or falls too far behind.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("Event stream upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	feedCh := make(chan types.Notification)
	sub := s.backbone.SubscribeEvents(feedCh)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	defer close(done)
	events := make(chan types.Notification, wsEventBuffer)
	overflow := pumpEvents(feedCh, events, done)

	// Drain client frames so close and pong handling keep working.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case n := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wsEvent{Event: n.Event.Name(), Data: n.Event}); err != nil {
				log.Debug("Event stream write failed", "err", err)
				return
			}
		case <-overflow:
			log.Debug("Event stream client too slow, dropping")
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case err := <-sub.Err():
			if err != nil {
				log.Debug("Event subscription failed", "err", err)
			}
			return
		case <-closed:
			return
		}
	}
}

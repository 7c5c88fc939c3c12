// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jackwhot/jackwhot-service/internal/database"
	"github.com/jackwhot/jackwhot-service/internal/middleware"
	"github.com/jackwhot/jackwhot-service/internal/room"
)

// RoomMessage is the envelope for inbound room WebSocket messages.
type RoomMessage struct {
	Type string `json:"type"`

	Ready     *bool  `json:"ready,omitempty"`
	CardIndex *int   `json:"cardIndex,omitempty"`
	Target    string `json:"target,omitempty"`
	Player    string `json:"player,omitempty"`
	I         *int   `json:"i,omitempty"`
	J         *int   `json:"j,omitempty"`
	Message   string `json:"message,omitempty"`
}

// playerRoute buffers outbound events for one connection. Deliver is called
// under the room lock, so it never blocks: a full buffer drops the event and
// the client recovers through the rejoin resync.
type playerRoute struct {
	out chan room.Event
}

func newPlayerRoute() *playerRoute {
	return &playerRoute{out: make(chan room.Event, 32)}
}

func (p *playerRoute) Deliver(ev room.Event) {
	select {
	case p.out <- ev:
	default:
	}
}

// RoomWSHandler upgrades the connection for /rooms/ws/{room_id}, resolves
// the player identity (creating a guest account if needed), joins them to
// the room, and pumps messages both ways until the socket closes.
func RoomWSHandler(logger *logrus.Logger, store *room.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/rooms/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing room_id in path (/rooms/ws/{room_id})", http.StatusBadRequest)
			return
		}
		roomID := pathParts[0]

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"jackwhot"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "jackwhot" {
			c.Close(BadSubprotocolError, "client must speak the jackwhot subprotocol")
			return
		}

		userID, err := EnsureEphemeralUser(w, r)
		if err != nil {
			logger.Warnf("user authentication failed for room %s: %v", roomID, err)
			c.Close(websocket.StatusPolicyViolation, "authentication failed")
			return
		}
		user, err := database.GetUserByID(r.Context(), userID)
		if err != nil {
			logger.Warnf("user %s not found for room %s: %v", userID, roomID, err)
			c.Close(InvalidUserIDError, "unknown user")
			return
		}
		username := user.Username

		rm := store.GetOrCreate(roomID)
		route := newPlayerRoute()

		rm.Join(username)
		rm.AttachRoute(username, route)
		// the join broadcast went out before this route existed; resync
		// unconditionally so both fresh joins and reconnects see the room
		rm.Rejoin(username)
		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)
		logger.Infof("user %s connected to room %s", username, roomID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writeRoomEvents(ctx, c, route, logger)

		readRoomMessages(ctx, c, rm, username, route, logger)

		rm.DetachRoute(username, route)
		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, nil)
		logger.Infof("user %s disconnected from room %s", username, roomID)
	}
}

// writeRoomEvents drains the route's buffer onto the socket, pinging
// periodically to keep intermediaries from dropping the connection.
func writeRoomEvents(ctx context.Context, c *websocket.Conn, route *playerRoute, logger *logrus.Logger) {
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case ev := <-route.out:
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Errorf("failed to marshal event %s: %v", ev.Type, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// readRoomMessages blocks on the socket, routing each inbound message to
// the room engine. Rejected actions echo back to the acting client only.
func readRoomMessages(ctx context.Context, c *websocket.Conn, rm *room.Room, username string, route *playerRoute, logger *logrus.Logger) {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("websocket closed normally for user %s in room %s", username, rm.ID())
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("read error for user %s in room %s: %v", username, rm.ID(), err)
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg RoomMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid json from user %s in room %s: %v", username, rm.ID(), err)
			route.Deliver(room.Event{Type: room.EventError, Reason: "invalid JSON"})
			continue
		}

		var res room.Result
		switch msg.Type {
		case "rejoin":
			res = rm.Rejoin(username)
		case "leaveRoom":
			res = rm.Leave(username)
			if res.Applied {
				c.Close(websocket.StatusNormalClosure, "left room")
				return
			}
		case "setReady":
			ready := true
			if msg.Ready != nil {
				ready = *msg.Ready
			}
			res = rm.SetReady(username, ready)
		case "startGame":
			res = rm.StartGame(username)
		case "passCard":
			if msg.CardIndex == nil {
				route.Deliver(room.Event{Type: room.EventError, Reason: "passCard requires cardIndex"})
				continue
			}
			res = rm.PassCard(username, *msg.CardIndex)
		case "sendSignal":
			res = rm.SendSignal(username)
		case "callJackwhot":
			res = rm.CallJackwhot(username)
		case "suspect":
			res = rm.Suspect(username, msg.Target)
		case "swapPlayers":
			if msg.I == nil || msg.J == nil {
				route.Deliver(room.Event{Type: room.EventError, Reason: "swapPlayers requires i and j"})
				continue
			}
			res = rm.Swap(*msg.I, *msg.J)
		case "kickPlayer":
			res = rm.Kick(msg.Player)
		case "rematch":
			res = rm.Rematch(username)
		case "requestHand":
			res = rm.RequestHand(username)
		case "chat":
			if msg.Message == "" {
				continue
			}
			res = rm.Chat(username, msg.Message)
			if res.Applied && database.DB != nil {
				go func(roomID, from, text string) {
					if err := database.InsertChatMessage(context.Background(), roomID, from, text); err != nil {
						logger.Warnf("failed to persist chat for room %s: %v", roomID, err)
					}
				}(rm.ID(), username, msg.Message)
			}
		default:
			route.Deliver(room.Event{Type: room.EventError, Reason: "unknown message type: " + msg.Type})
			continue
		}

		if !res.Applied && res.Reason != room.ReasonNone {
			route.Deliver(room.Event{Type: room.EventError, Reason: string(res.Reason)})
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

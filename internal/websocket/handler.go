package websocket

import (
	"encoding/json"

	"github.com/gofiber/websocket/v2"
)

// ServeWs registers the connection and blocks until the console disconnects.
// Initial frames are queued before registration so they arrive first.
func ServeWs(hub *Hub, c *websocket.Conn, practitionerID string, initial ...Envelope) {
	client := &Client{Hub: hub, Conn: c, PractitionerID: practitionerID, Send: make(chan []byte, 256)}
	for _, env := range initial {
		data, err := json.Marshal(env)
		if err != nil {
			hub.logger.Error("Hub", "Failed to marshal initial frame", map[string]interface{}{"error": err.Error(), "type": env.Type})
			continue
		}
		client.Send <- data
	}
	if !hub.join(client) {
		return
	}

	go client.writePump()
	client.readPump()
}

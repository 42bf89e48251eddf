package hub

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"
)

// Commander is implemented by whatever executes client commands. Capture
// commands run asynchronously; their outcome arrives as a broadcast event.
type Commander interface {
	Start() error
	Stop()
	Capture(function, resolve string) error
	CapturePosition(position string) error
	CancelCapture() error
	ClearMapping(function string) error
	SetReverserMode(mode string) error
	SetThrottleMode(mode string) error
	Save() error
	Load() error
	EnableDevice(device int) error
	DisableDevice(device int) error
}

// Client represents a connected WebSocket client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewClient creates a new Client attached to the hub.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Send queues a message for this client only, dropping it if the buffer
// is full.
func (c *Client) Send(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// WritePump sends messages from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	defer func() {
		c.conn.Close()
	}()

	for msg := range c.send {
		err := c.conn.WriteMessage(websocket.TextMessage, msg)
		if err != nil {
			break
		}
	}
}

// ReadPumpWithHandler reads messages from the WebSocket and executes
// client commands against the commander.
func (c *Client) ReadPumpWithHandler(cmd Commander) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			log.Printf("Error parsing client message: %v", err)
			continue
		}

		if err := c.dispatch(cmd, clientMsg); err != nil {
			log.Printf("Command %q failed: %v", clientMsg.Type, err)
			data, _ := json.Marshal(NewErrorMessage(err.Error()))
			c.Send(data)
		}
	}
}

func (c *Client) dispatch(cmd Commander, msg ClientMessage) error {
	switch msg.Type {
	case "start":
		return cmd.Start()
	case "stop":
		cmd.Stop()
		return nil
	case "capture":
		return cmd.Capture(msg.Function, msg.Resolve)
	case "capture_position":
		return cmd.CapturePosition(msg.Position)
	case "cancel_capture":
		return cmd.CancelCapture()
	case "clear":
		return cmd.ClearMapping(msg.Function)
	case "set_reverser_mode":
		return cmd.SetReverserMode(msg.Mode)
	case "set_throttle_mode":
		return cmd.SetThrottleMode(msg.Mode)
	case "save":
		return cmd.Save()
	case "load":
		return cmd.Load()
	case "enable_device":
		return cmd.EnableDevice(msg.Device)
	case "disable_device":
		return cmd.DisableDevice(msg.Device)
	default:
		log.Printf("Unknown client command %q", msg.Type)
		return nil
	}
}

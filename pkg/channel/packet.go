package channel

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Engine.IO packet types
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineUpgrade = '5'
	engineNoop    = '6'
)

// Socket.IO packet types, carried inside an Engine.IO message
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
)

// PacketKind is the decoded meaning of a text frame
type PacketKind int

const (
	PacketUnknown PacketKind = iota
	PacketOpen
	PacketClose
	PacketPing
	PacketPong
	PacketNoop
	PacketConnect
	PacketDisconnect
	PacketEvent
	PacketConnectError
)

var errEmptyPacket = errors.New("empty packet")

// Packet is a decoded text frame
type Packet struct {
	Kind      PacketKind
	Namespace string
	Event     string
	Data      []byte
}

// namespaced reports whether the packet is a Socket.IO packet scoped to a
// namespace, as opposed to an Engine.IO transport packet
func (p Packet) namespaced() bool {
	switch p.Kind {
	case PacketConnect, PacketDisconnect, PacketEvent, PacketConnectError:
		return true
	}
	return false
}

// Handshake is the body of the Engine.IO open packet
type Handshake struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// DecodePacket parses a single websocket text frame
func DecodePacket(frame []byte) (Packet, error) {
	if len(frame) == 0 {
		return Packet{}, errEmptyPacket
	}
	body := frame[1:]
	switch frame[0] {
	case engineOpen:
		return Packet{Kind: PacketOpen, Data: body}, nil
	case engineClose:
		return Packet{Kind: PacketClose}, nil
	case enginePing:
		return Packet{Kind: PacketPing, Data: body}, nil
	case enginePong:
		return Packet{Kind: PacketPong, Data: body}, nil
	case engineNoop, engineUpgrade:
		return Packet{Kind: PacketNoop}, nil
	case engineMessage:
		return decodeSocketPacket(body)
	default:
		return Packet{}, fmt.Errorf("unknown engine packet type %q", frame[0])
	}
}

func decodeSocketPacket(body []byte) (Packet, error) {
	if len(body) == 0 {
		return Packet{}, errEmptyPacket
	}
	kind := body[0]
	rest := string(body[1:])

	namespace := "/"
	if strings.HasPrefix(rest, "/") {
		idx := strings.IndexByte(rest, ',')
		if idx < 0 {
			namespace, rest = rest, ""
		} else {
			namespace, rest = rest[:idx], rest[idx+1:]
		}
	}
	// ack id
	rest = strings.TrimLeft(rest, "0123456789")

	packet := Packet{Namespace: namespace, Data: []byte(rest)}
	switch kind {
	case socketConnect:
		packet.Kind = PacketConnect
	case socketDisconnect:
		packet.Kind = PacketDisconnect
	case socketConnectError:
		packet.Kind = PacketConnectError
	case socketEvent:
		if !gjson.Valid(rest) {
			return Packet{}, fmt.Errorf("invalid event payload %q", rest)
		}
		args := gjson.Parse(rest)
		if !args.IsArray() {
			return Packet{}, fmt.Errorf("event payload is not an array")
		}
		name := args.Get("0")
		if name.Type != gjson.String {
			return Packet{}, fmt.Errorf("event name missing")
		}
		packet.Kind = PacketEvent
		packet.Event = name.String()
		packet.Data = nil
		if data := args.Get("1"); data.Exists() {
			packet.Data = []byte(data.Raw)
		}
	case socketAck:
		packet.Kind = PacketUnknown
	default:
		return Packet{}, fmt.Errorf("unknown socket packet type %q", kind)
	}
	return packet, nil
}

// DecodeHandshake reads the open packet body
func DecodeHandshake(data []byte) (Handshake, error) {
	var h Handshake
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("invalid handshake: %w", err)
	}
	return h, nil
}

func isDefaultNamespace(namespace string) bool {
	return namespace == "" || namespace == "/"
}

// SameNamespace reports whether a and b name the same namespace, treating
// the empty name as the default one
func SameNamespace(a, b string) bool {
	if isDefaultNamespace(a) || isDefaultNamespace(b) {
		return isDefaultNamespace(a) && isDefaultNamespace(b)
	}
	return a == b
}

// EncodeConnect returns the namespace connect frame
func EncodeConnect(namespace string) []byte {
	if isDefaultNamespace(namespace) {
		return []byte{engineMessage, socketConnect}
	}
	return append([]byte{engineMessage, socketConnect}, namespace+","...)
}

// EncodePong answers a ping, echoing its probe data
func EncodePong(data []byte) []byte {
	return append([]byte{enginePong}, data...)
}

// EncodeEvent builds an event frame for the default namespace
func EncodeEvent(name string, payload any) ([]byte, error) {
	return EncodeNamespaceEvent("/", name, payload)
}

// EncodeNamespaceEvent builds an event frame for namespace
func EncodeNamespaceEvent(namespace, name string, payload any) ([]byte, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("could not encode event %s: %w", name, err)
	}
	frame := []byte{engineMessage, socketEvent}
	if !isDefaultNamespace(namespace) {
		frame = append(frame, namespace+","...)
	}
	return append(frame, body...), nil
}

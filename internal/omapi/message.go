package omapi

import (
	"bytes"
	"fmt"
	"math/rand"
)

// Opcode indicates the type of operation a Message carries. Only the two
// opcodes the startup handshake actually exchanges are modeled.
type Opcode uint32

const (
	OpUnknown Opcode = iota
	OpOpen
	OpUpdate
)

func (o Opcode) String() string {
	switch o {
	case OpOpen:
		return "OPEN"
	case OpUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Message is a single OMAPI protocol packet.
type Message struct {
	Message       map[string][]byte
	Object        map[string][]byte
	Signature     []byte
	AuthID        uint32
	Operation     Opcode
	Handle        uint32
	TransactionID uint32
	ResponseID    uint32
	signed        bool
}

func NewMessage() *Message {
	return &Message{
		Message: make(map[string][]byte),
		Object:  make(map[string][]byte),
		//nolint:gosec // pseudo-random transaction id, not security sensitive
		TransactionID: uint32(rand.Int31()),
	}
}

func NewEmptyMessage() *Message {
	return &Message{Message: make(map[string][]byte), Object: make(map[string][]byte)}
}

func NewOpenMessage() *Message {
	m := NewMessage()
	m.Operation = OpOpen
	return m
}

func (m *Message) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	w := &errWriter{w: &buf}

	if m.signed {
		w.writeUint32(m.AuthID)
	}
	//nolint:gosec // protocol field width is fixed at uint32
	w.writeUint32(uint32(len(m.Signature)))
	w.writeUint32(uint32(m.Operation))
	w.writeUint32(m.Handle)
	w.writeUint32(m.TransactionID)
	w.writeUint32(m.ResponseID)
	w.writeMap(m.Message)
	w.writeMap(m.Object)
	if m.signed {
		w.writeBytes(m.Signature)
	}
	return buf.Bytes(), w.err
}

func (m *Message) UnmarshalBinary(b []byte) error {
	r := &errReader{r: bytes.NewBuffer(b)}

	var authlen uint32
	r.readUint32(&m.AuthID)
	r.readUint32(&authlen)
	r.readUint32((*uint32)(&m.Operation))
	r.readUint32(&m.Handle)
	r.readUint32(&m.TransactionID)
	r.readUint32(&m.ResponseID)
	r.readMap(m.Message)
	r.readMap(m.Object)

	sig := make([]byte, authlen)
	r.readBytes(sig)
	m.Signature = sig

	return r.err
}

func (m *Message) String() string {
	return fmt.Sprintf("OMAPI message{Operation: %s, TID: %d, RID: %d}", m.Operation, m.TransactionID, m.ResponseID)
}

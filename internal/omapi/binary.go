// Package omapi implements just enough of ISC dhcpd's OMAPI wire protocol
// to perform the startup handshake (§4.9's "status probes it over its
// management channel"); fleetd never needs OMAPI's host-object CRUD, so
// AddHost/GetHost/DeleteHost and their opcodes are not reproduced here.
//
// Grounded on canonical-maas/src/maasagent/internal/dhcpd/omapi, trimmed to
// the subset a liveness probe needs.
package omapi

import (
	"encoding/binary"
	"io"
	"sort"
)

// errWriter turns a sequence of writes into a single sticky error, the same
// idiom the teacher's omapi package uses.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) writeInt16(v int16) {
	if ew.err != nil {
		return
	}
	ew.err = binary.Write(ew.w, binary.BigEndian, v)
}

func (ew *errWriter) writeInt32(v int32) {
	if ew.err != nil {
		return
	}
	ew.err = binary.Write(ew.w, binary.BigEndian, v)
}

func (ew *errWriter) writeUint32(v uint32) {
	if ew.err != nil {
		return
	}
	ew.err = binary.Write(ew.w, binary.BigEndian, v)
}

func (ew *errWriter) writeBytes(v []byte) {
	if ew.err != nil {
		return
	}
	ew.err = binary.Write(ew.w, binary.BigEndian, v)
}

func (ew *errWriter) writeMap(data map[string][]byte) {
	if ew.err != nil {
		return
	}
	keys := make(sort.StringSlice, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Sort(keys)
	for _, key := range keys {
		value := data[key]
		ew.writeInt16(int16(len(key)))
		ew.writeBytes([]byte(key))
		ew.writeInt32(int32(len(value)))
		ew.writeBytes(value)
	}
	ew.writeBytes([]byte{0x00, 0x00})
}

type errReader struct {
	r   io.Reader
	err error
}

func (er *errReader) readInt16(v *int16) {
	if er.err != nil {
		return
	}
	er.err = binary.Read(er.r, binary.BigEndian, v)
}

func (er *errReader) readInt32(v *int32) {
	if er.err != nil {
		return
	}
	er.err = binary.Read(er.r, binary.BigEndian, v)
}

func (er *errReader) readUint32(v *uint32) {
	if er.err != nil {
		return
	}
	er.err = binary.Read(er.r, binary.BigEndian, v)
}

func (er *errReader) readBytes(v []byte) {
	if er.err != nil {
		return
	}
	er.err = binary.Read(er.r, binary.BigEndian, v)
}

func (er *errReader) readMap(data map[string][]byte) {
	var (
		keylen   int16
		valuelen int32
	)
	for {
		er.readInt16(&keylen)
		if keylen == 0 || er.err != nil {
			break
		}
		key := make([]byte, keylen)
		er.readBytes(key)
		er.readInt32(&valuelen)
		value := make([]byte, valuelen)
		er.readBytes(value)
		data[string(key)] = value
	}
}

package facenet

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/ndn-tools/catchunks-go/internal/ndn"
)

// Wire packet kinds for the minimal UDP datagram protocol. This is not an
// NDN-TLV codec: packet encoding/decoding sits outside the fetcher core,
// which only ever sees ndn.Interest/ndn.Data/ndn.Nack values (§6).
const (
	kindInterest byte = 1
	kindData     byte = 2
	kindNack     byte = 3
)

func encodeName(buf *bytes.Buffer, n ndn.Name) {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(n.Len()))
	buf.Write(lenBuf[:])
	for i := 0; i < n.Len(); i++ {
		c := n.At(i)
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(c)))
		buf.Write(lenBuf[:])
		buf.Write(c)
	}
}

func decodeName(r *bytes.Reader) (ndn.Name, error) {
	n := ndn.Name{}
	var lenBuf [2]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return n, err
	}
	count := binary.BigEndian.Uint16(lenBuf[:])
	for i := uint16(0); i < count; i++ {
		if _, err := r.Read(lenBuf[:]); err != nil {
			return n, err
		}
		clen := binary.BigEndian.Uint16(lenBuf[:])
		comp := make([]byte, clen)
		if _, err := r.Read(comp); err != nil {
			return n, err
		}
		n = n.Append(comp)
	}
	return n, nil
}

// EncodeInterest serializes an Interest to its wire form.
func EncodeInterest(i ndn.Interest) []byte {
	var buf bytes.Buffer
	buf.WriteByte(kindInterest)
	encodeName(&buf, i.Name)
	var rest [4 + 4 + 1]byte
	binary.BigEndian.PutUint32(rest[0:4], uint32(i.Lifetime.Milliseconds()))
	copy(rest[4:8], i.Nonce[:])
	if i.MustBeFresh {
		rest[8] = 1
	}
	buf.Write(rest[:])
	return buf.Bytes()
}

// DecodeInterest parses the wire form produced by EncodeInterest.
func DecodeInterest(data []byte) (ndn.Interest, error) {
	if len(data) == 0 || data[0] != kindInterest {
		return ndn.Interest{}, errors.New("facenet: not an interest packet")
	}
	r := bytes.NewReader(data[1:])
	name, err := decodeName(r)
	if err != nil {
		return ndn.Interest{}, err
	}
	var rest [9]byte
	if _, err := r.Read(rest[:]); err != nil {
		return ndn.Interest{}, err
	}
	lifetimeMs := binary.BigEndian.Uint32(rest[0:4])
	var nonce ndn.Nonce
	copy(nonce[:], rest[4:8])
	return ndn.Interest{
		Name:        name,
		Lifetime:    time.Duration(lifetimeMs) * time.Millisecond,
		MustBeFresh: rest[8] == 1,
		Nonce:       nonce,
	}, nil
}

// EncodeData serializes a Data packet to its wire form.
func EncodeData(d ndn.Data) []byte {
	var buf bytes.Buffer
	buf.WriteByte(kindData)
	encodeName(&buf, d.Name)

	var hdr [1 + 8 + 1]byte
	if d.HasFinalBlockID {
		hdr[0] = 1
	}
	binary.BigEndian.PutUint64(hdr[1:9], uint64(d.FinalBlockID))
	hdr[9] = byte(d.ContentType)
	buf.Write(hdr[:])

	var clen [4]byte
	binary.BigEndian.PutUint32(clen[:], uint32(len(d.Content)))
	buf.Write(clen[:])
	buf.Write(d.Content)
	return buf.Bytes()
}

// DecodeData parses the wire form produced by EncodeData.
func DecodeData(data []byte) (ndn.Data, error) {
	if len(data) == 0 || data[0] != kindData {
		return ndn.Data{}, errors.New("facenet: not a data packet")
	}
	r := bytes.NewReader(data[1:])
	name, err := decodeName(r)
	if err != nil {
		return ndn.Data{}, err
	}
	var hdr [10]byte
	if _, err := r.Read(hdr[:]); err != nil {
		return ndn.Data{}, err
	}
	var clen [4]byte
	if _, err := r.Read(clen[:]); err != nil {
		return ndn.Data{}, err
	}
	content := make([]byte, binary.BigEndian.Uint32(clen[:]))
	if _, err := r.Read(content); err != nil && len(content) > 0 {
		return ndn.Data{}, err
	}
	return ndn.Data{
		Name:            name,
		Content:         content,
		HasFinalBlockID: hdr[0] == 1,
		FinalBlockID:    ndn.SegmentNo(binary.BigEndian.Uint64(hdr[1:9])),
		ContentType:     ndn.ContentType(hdr[9]),
	}, nil
}

// EncodeNack serializes a Nack to its wire form.
func EncodeNack(n ndn.Nack) []byte {
	var buf bytes.Buffer
	buf.WriteByte(kindNack)
	encodeName(&buf, n.Interest.Name)
	buf.WriteByte(byte(n.Reason))
	return buf.Bytes()
}

// DecodeNack parses the wire form produced by EncodeNack. The interest
// name is recovered; other interest fields are not roundtripped and must
// be supplied by the caller who holds the original Interest.
func DecodeNack(data []byte) (ndn.Name, ndn.NackReason, error) {
	if len(data) == 0 || data[0] != kindNack {
		return ndn.Name{}, 0, errors.New("facenet: not a nack packet")
	}
	r := bytes.NewReader(data[1:])
	name, err := decodeName(r)
	if err != nil {
		return ndn.Name{}, 0, err
	}
	var reason [1]byte
	if _, err := r.Read(reason[:]); err != nil {
		return ndn.Name{}, 0, err
	}
	return name, ndn.NackReason(reason[0]), nil
}

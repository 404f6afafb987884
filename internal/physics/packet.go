// Package physics carries derived collider geometry to the physics side.
package physics

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/scenemirror/internal/ids"
)

// Packet IDs
const (
	// Renderer -> Physics
	PR_SET_COLLIDER_GEOMETRY uint16 = 0x0C01 // Baked collider vertices
)

// headerSize is PacketID(2) + Flags(1) + Node(8) + PositionCount(4) + IndexCount(4).
const headerSize = 19

const flagIndexed uint8 = 1 << 0

// ErrShortPacket is returned when a buffer ends before the declared payload.
var ErrShortPacket = errors.New("short packet")

// ColliderGeometry (PR_SET_COLLIDER_GEOMETRY 0x0C01) sends the vertex data of
// a hull or trimesh collider. Indices is nil for non-indexed geometry.
type ColliderGeometry struct {
	Node      ids.ID
	Positions []float32
	Indices   []uint32
}

// Size returns packet size.
func (p *ColliderGeometry) Size() int {
	return headerSize + 4*len(p.Positions) + 4*len(p.Indices)
}

// Encode encodes the packet to bytes.
//
// Layout (little endian):
//
//	0  uint16 packet id
//	2  uint8  flags, bit 0 set when indices follow
//	3  uint64 node id
//	11 uint32 position float count
//	15 uint32 index count
//	19 float32 positions, then uint32 indices
func (p *ColliderGeometry) Encode() []byte {
	buf := make([]byte, p.Size())
	writeUint16(buf, 0, PR_SET_COLLIDER_GEOMETRY)
	if p.Indices != nil {
		buf[2] = flagIndexed
	}
	writeUint64(buf, 3, uint64(p.Node))
	writeUint32(buf, 11, uint32(len(p.Positions)))
	writeUint32(buf, 15, uint32(len(p.Indices)))

	off := headerSize
	for _, v := range p.Positions {
		writeUint32(buf, off, math.Float32bits(v))
		off += 4
	}
	for _, v := range p.Indices {
		writeUint32(buf, off, v)
		off += 4
	}
	return buf
}

// DecodeColliderGeometry parses an encoded packet.
func DecodeColliderGeometry(buf []byte) (*ColliderGeometry, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrShortPacket, len(buf), headerSize)
	}
	if id := readUint16(buf, 0); id != PR_SET_COLLIDER_GEOMETRY {
		return nil, fmt.Errorf("unexpected packet id 0x%04X", id)
	}
	p := &ColliderGeometry{Node: ids.ID(readUint64(buf, 3))}
	positions := int(readUint32(buf, 11))
	indices := int(readUint32(buf, 15))
	if want := headerSize + 4*(positions+indices); len(buf) < want {
		return nil, fmt.Errorf("%w: %d bytes, payload needs %d", ErrShortPacket, len(buf), want)
	}

	off := headerSize
	p.Positions = make([]float32, positions)
	for i := range p.Positions {
		p.Positions[i] = math.Float32frombits(readUint32(buf, off))
		off += 4
	}
	if buf[2]&flagIndexed != 0 {
		p.Indices = make([]uint32, indices)
		for i := range p.Indices {
			p.Indices[i] = readUint32(buf, off)
			off += 4
		}
	}
	return p, nil
}

func writeUint16(buf []byte, offset int, v uint16) {
	binary.LittleEndian.PutUint16(buf[offset:], v)
}

func writeUint32(buf []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(buf[offset:], v)
}

func writeUint64(buf []byte, offset int, v uint64) {
	binary.LittleEndian.PutUint64(buf[offset:], v)
}

func readUint16(buf []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(buf[offset:])
}

func readUint32(buf []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(buf[offset:])
}

func readUint64(buf []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(buf[offset:])
}

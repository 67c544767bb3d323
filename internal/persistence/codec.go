// Package persistence saves and restores the encoding database.
//
// The on-disk layout is a single little-endian blob:
//
//	magic     [4]byte  "FDB1"
//	version   uint16
//	dim       uint32
//	tolerance float64
//	count     uint32
//	count × { nameLen uint16, name [nameLen]byte, embCount uint32, embCount × dim × float32 }
//	crc32     uint32   IEEE checksum of everything before it
package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/kozaktomas/facedb/internal/database"
)

const (
	// FormatVersion is the current blob layout version.
	FormatVersion uint16 = 1

	headerSize = 4 + 2 + 4 + 8 + 4
	crcSize    = 4
)

var magic = [4]byte{'F', 'D', 'B', '1'}

// Encode writes the snapshot in the binary layout.
func Encode(w io.Writer, snap *database.Snapshot) error {
	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.Write(magic[:])
	buf.Write(le.AppendUint16(nil, FormatVersion))
	buf.Write(le.AppendUint32(nil, uint32(snap.Dim())))
	buf.Write(le.AppendUint64(nil, math.Float64bits(snap.Tolerance())))
	buf.Write(le.AppendUint32(nil, uint32(snap.Len())))

	var encErr error
	snap.Range(func(_ int, rec database.IdentityRecord) bool {
		if len(rec.Name) > database.MaxNameLen {
			encErr = fmt.Errorf("%w: identity name is %d bytes long", database.ErrInvalidInput, len(rec.Name))
			return false
		}
		buf.Write(le.AppendUint16(nil, uint16(len(rec.Name))))
		buf.WriteString(rec.Name)
		buf.Write(le.AppendUint32(nil, uint32(len(rec.Embeddings))))
		for _, emb := range rec.Embeddings {
			for _, c := range emb {
				buf.Write(le.AppendUint32(nil, math.Float32bits(c)))
			}
		}
		return true
	})
	if encErr != nil {
		return encErr
	}

	buf.Write(le.AppendUint32(nil, crc32.ChecksumIEEE(buf.Bytes())))

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("%w: writing database: %v", database.ErrIO, err)
	}
	return nil
}

// Marshal encodes the snapshot into a byte slice.
func Marshal(snap *database.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a blob produced by Encode. expectedDim pins the embedding
// dimension; a blob written with another dimension is rejected. Zero accepts
// whatever dimension the blob declares.
func Decode(r io.Reader, expectedDim int) (*database.Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading database: %v", database.ErrIO, err)
	}
	return Unmarshal(data, expectedDim)
}

// Unmarshal decodes a blob held in memory. See Decode.
func Unmarshal(data []byte, expectedDim int) (*database.Snapshot, error) {
	if len(data) < headerSize+crcSize {
		return nil, corrupt("blob is %d bytes, shorter than the header", len(data))
	}

	payload, trailer := data[:len(data)-crcSize], data[len(data)-crcSize:]
	if want, got := binary.LittleEndian.Uint32(trailer), crc32.ChecksumIEEE(payload); want != got {
		return nil, corrupt("checksum mismatch (stored 0x%08x, computed 0x%08x)", want, got)
	}

	d := &decoder{data: payload}
	var m [4]byte
	copy(m[:], d.next(4))
	if m != magic {
		return nil, corrupt("bad magic %q", m[:])
	}
	if v := d.uint16(); v != FormatVersion {
		return nil, corrupt("unsupported format version %d", v)
	}
	dim := int(d.uint32())
	tolerance := math.Float64frombits(d.uint64())
	count := int(d.uint32())

	if dim <= 0 {
		return nil, corrupt("invalid embedding dimension %d", dim)
	}
	if expectedDim > 0 && dim != expectedDim {
		return nil, corrupt("blob embedding dimension %d does not match expected %d", dim, expectedDim)
	}

	records := make([]database.IdentityRecord, 0, min(count, d.remaining()))
	for i := range count {
		nameLen := int(d.uint16())
		name := string(d.next(nameLen))
		embCount := int(d.uint32())
		if d.err != nil {
			return nil, corrupt("record %d: truncated header", i)
		}
		if embCount == 0 {
			return nil, corrupt("record %d (%q) has no embeddings", i, name)
		}
		if need := embCount * dim * 4; need/4/dim != embCount || need > d.remaining() {
			return nil, corrupt("record %d (%q): %d embeddings exceed remaining %d bytes", i, name, embCount, d.remaining())
		}

		rec := database.IdentityRecord{Name: name, Embeddings: make([]database.Vector, embCount)}
		for j := range embCount {
			vec := make(database.Vector, dim)
			for k := range vec {
				vec[k] = math.Float32frombits(d.uint32())
			}
			rec.Embeddings[j] = vec
		}
		records = append(records, rec)
	}
	if d.err != nil {
		return nil, corrupt("truncated record data")
	}
	if d.remaining() != 0 {
		return nil, corrupt("%d trailing bytes after last record", d.remaining())
	}

	snap, err := database.NewSnapshot(dim, tolerance, records)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", database.ErrDeserialization, err)
	}
	return snap, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", database.ErrDeserialization, fmt.Sprintf(format, args...))
}

// decoder is a bounds-checked cursor. After the first short read every accessor
// returns zero values and err stays set.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) next(n int) []byte {
	if d.err != nil || n > d.remaining() {
		d.err = io.ErrUnexpectedEOF
		return make([]byte, n)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) uint16() uint16 { return binary.LittleEndian.Uint16(d.next(2)) }
func (d *decoder) uint32() uint32 { return binary.LittleEndian.Uint32(d.next(4)) }
func (d *decoder) uint64() uint64 { return binary.LittleEndian.Uint64(d.next(8)) }

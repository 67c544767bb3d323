package persistence

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"
	"testing"

	"github.com/kozaktomas/facedb/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot(t *testing.T) *database.Snapshot {
	t.Helper()
	snap, err := database.NewSnapshot(4, 0.55, []database.IdentityRecord{
		{Name: "alice", Embeddings: []database.Vector{
			{0.1, -0.2, 0.3, float32(math.SmallestNonzeroFloat32)},
			{1e-7, 2.5, -3.75, 0},
		}},
		{Name: "Jiří Novák", Embeddings: []database.Vector{{9, 8, 7, 6}}},
	})
	require.NoError(t, err)
	return snap
}

func assertSnapshotsEqual(t *testing.T, want, got *database.Snapshot) {
	t.Helper()
	assert.Equal(t, want.Dim(), got.Dim())
	assert.Equal(t, math.Float64bits(want.Tolerance()), math.Float64bits(got.Tolerance()))
	assert.Equal(t, want.Names(), got.Names())
	wr, gr := want.Records(), got.Records()
	require.Len(t, gr, len(wr))
	for i := range wr {
		assert.True(t, wr[i].Equal(gr[i]), "record %d differs: %+v vs %+v", i, wr[i], gr[i])
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	snap := sampleSnapshot(t)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, snap))

	got, err := Decode(&buf, 4)
	require.NoError(t, err)
	assertSnapshotsEqual(t, snap, got)
}

func TestCodec_RoundTripEmpty(t *testing.T) {
	snap, err := database.EmptySnapshot(128, database.DefaultTolerance)
	require.NoError(t, err)

	data, err := Marshal(snap)
	require.NoError(t, err)
	assert.Len(t, data, headerSize+crcSize)

	got, err := Unmarshal(data, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, 128, got.Dim())
}

func TestCodec_Layout(t *testing.T) {
	snap, err := database.NewSnapshot(2, 0.6, []database.IdentityRecord{
		{Name: "ab", Embeddings: []database.Vector{{1, 2}}},
	})
	require.NoError(t, err)

	data, err := Marshal(snap)
	require.NoError(t, err)

	le := binary.LittleEndian
	assert.Equal(t, []byte("FDB1"), data[0:4])
	assert.Equal(t, FormatVersion, le.Uint16(data[4:6]))
	assert.Equal(t, uint32(2), le.Uint32(data[6:10]))
	assert.InDelta(t, 0.6, math.Float64frombits(le.Uint64(data[10:18])), 0)
	assert.Equal(t, uint32(1), le.Uint32(data[18:22]))
	assert.Equal(t, uint16(2), le.Uint16(data[22:24]))
	assert.Equal(t, "ab", string(data[24:26]))
	assert.Equal(t, uint32(1), le.Uint32(data[26:30]))
	assert.InDelta(t, 1.0, math.Float32frombits(le.Uint32(data[30:34])), 0)
	assert.InDelta(t, 2.0, math.Float32frombits(le.Uint32(data[34:38])), 0)
	assert.Len(t, data, 38+crcSize)
}

func TestCodec_Truncated(t *testing.T) {
	data, err := Marshal(sampleSnapshot(t))
	require.NoError(t, err)

	for _, n := range []int{0, 3, headerSize, len(data) / 2, len(data) - 1} {
		_, err := Unmarshal(data[:n], 4)
		require.ErrorIs(t, err, database.ErrDeserialization, "truncated to %d bytes", n)
	}
}

func TestCodec_ChecksumMismatch(t *testing.T) {
	data, err := Marshal(sampleSnapshot(t))
	require.NoError(t, err)

	data[headerSize+3] ^= 0xff
	_, err = Unmarshal(data, 4)
	require.ErrorIs(t, err, database.ErrDeserialization)
}

func TestCodec_DimensionMismatch(t *testing.T) {
	data, err := Marshal(sampleSnapshot(t))
	require.NoError(t, err)

	_, err = Unmarshal(data, 128)
	require.ErrorIs(t, err, database.ErrDeserialization)
}

// reseal recomputes the trailing checksum so structural checks are reached.
func reseal(payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(payload)
	sum := make([]byte, 4)
	binary.LittleEndian.PutUint32(sum, crc32.ChecksumIEEE(payload))
	buf.Write(sum)
	return buf.Bytes()
}

func TestCodec_StructuralCorruption(t *testing.T) {
	data, err := Marshal(sampleSnapshot(t))
	require.NoError(t, err)
	payload := data[:len(data)-crcSize]

	tests := []struct {
		name   string
		mutate func(p []byte) []byte
	}{
		{"bad magic", func(p []byte) []byte { p[0] = 'X'; return p }},
		{"bad version", func(p []byte) []byte { binary.LittleEndian.PutUint16(p[4:], 99); return p }},
		{"zero dimension", func(p []byte) []byte { binary.LittleEndian.PutUint32(p[6:], 0); return p }},
		{"record count too high", func(p []byte) []byte { binary.LittleEndian.PutUint32(p[18:], 3); return p }},
		{"record count too low", func(p []byte) []byte { binary.LittleEndian.PutUint32(p[18:], 1); return p }},
		{"zero embeddings", func(p []byte) []byte {
			// alice: nameLen(2) + "alice"(5) then embedding count
			binary.LittleEndian.PutUint32(p[headerSize+7:], 0)
			return p
		}},
		{"huge embedding count", func(p []byte) []byte {
			binary.LittleEndian.PutUint32(p[headerSize+7:], math.MaxUint32)
			return p
		}},
		{"trailing garbage", func(p []byte) []byte { return append(p, 1, 2, 3, 4) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.mutate(append([]byte(nil), payload...))
			_, err := Unmarshal(reseal(p), 0)
			require.ErrorIs(t, err, database.ErrDeserialization)
		})
	}
}

func TestCodec_DuplicateNamesRejected(t *testing.T) {
	snap, err := database.NewSnapshot(1, 0.6, []database.IdentityRecord{
		{Name: "aa", Embeddings: []database.Vector{{1}}},
		{Name: "bb", Embeddings: []database.Vector{{2}}},
	})
	require.NoError(t, err)
	data, err := Marshal(snap)
	require.NoError(t, err)

	payload := data[:len(data)-crcSize]
	// Rename "bb" to "aa": header + (2+2+4+4) bytes for the first record + nameLen.
	off := headerSize + 12 + 2
	copy(payload[off:], "aa")

	_, err = Unmarshal(reseal(payload), 1)
	require.ErrorIs(t, err, database.ErrDeserialization)
}

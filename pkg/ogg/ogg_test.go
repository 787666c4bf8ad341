package ogg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32KnownVectors(t *testing.T) {
	assert.Equal(t, uint32(835807244), crc32([]byte("Hello World")))
	assert.Equal(t, uint32(0), crc32(nil))
}

func TestSegmentTableBoundaries(t *testing.T) {
	cases := []struct {
		n        int
		expected []byte
	}{
		{100, []byte{100}},
		{255, []byte{255, 0}},
		{256, []byte{255, 1}},
		{510, []byte{255, 255, 0}},
		{600, []byte{255, 255, 90}},
	}
	for _, c := range cases {
		table := segmentTable(c.n)
		assert.Equal(t, c.expected, table)
		sum := 0
		for _, s := range table {
			sum += int(s)
		}
		assert.Equal(t, c.n, sum)
		assert.Equal(t, c.n/255+1, len(table))
	}
}

func TestCreatePageCRCVerifies(t *testing.T) {
	page := CreatePage([]byte("hello ogg payload"), 1234, 0xABCD, 7, FlagBOS)
	assert.True(t, VerifyCRC(page))
	page[len(page)-1] ^= 0xFF
	assert.False(t, VerifyCRC(page))
}

func TestParsePageRoundTrip(t *testing.T) {
	payload := make([]byte, 600)
	for i := range payload {
		payload[i] = byte(i)
	}
	raw := CreatePage(payload, 99, 42, 3, FlagEOS)
	p, consumed, err := ParsePage(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), consumed)
	assert.Equal(t, payload, p.Payload)
	assert.Equal(t, uint64(99), p.GranulePos)
	assert.Equal(t, uint32(42), p.SerialNumber)
	assert.Equal(t, uint32(3), p.SequenceNumber)
	assert.Equal(t, FlagEOS, p.Flags)
	assert.Equal(t, []byte{255, 255, 90}, p.SegmentTable)
}

func TestMuxDemuxLargePacket(t *testing.T) {
	payload := make([]byte, 500)
	for i := range payload {
		payload[i] = byte(i & 0xFF)
	}
	m := NewOggOpusMuxer(16000, 1, 312)
	out := m.MuxPackets([][]byte{payload}, 160)

	var d OggDemuxer
	packets := d.Demux(out)
	require.Len(t, packets, 1)
	assert.Equal(t, payload, packets[0])

	// The page carrying the 500-byte payload should use segment table [255,245].
	pages := allPages(t, out)
	require.GreaterOrEqual(t, len(pages), 3)
	audioPage := pages[2]
	assert.Equal(t, []byte{255, 245}, audioPage.SegmentTable)
}

func TestMuxDemuxVaryingSizes(t *testing.T) {
	sizes := []int{50, 200, 300, 10}
	var packets [][]byte
	for i, sz := range sizes {
		pkt := make([]byte, sz)
		for j := range pkt {
			pkt[j] = byte((i*7 + j) & 0xFF)
		}
		packets = append(packets, pkt)
	}
	m := NewOggOpusMuxer(16000, 1, 312)
	out := m.MuxPackets(packets, 160)

	var d OggDemuxer
	demuxed := d.Demux(out)
	require.Len(t, demuxed, len(sizes))
	for i, pkt := range demuxed {
		assert.Equal(t, packets[i], pkt)
	}

	pages := allPages(t, out)
	for _, p := range pages {
		raw := CreatePage(p.Payload, p.GranulePos, p.SerialNumber, p.SequenceNumber, p.Flags)
		assert.True(t, VerifyCRC(raw))
	}
	lastAudioPage := pages[len(pages)-1]
	assert.Equal(t, FlagEOS, lastAudioPage.Flags&FlagEOS)
}

func TestMuxExactlyOneBOSAndEOS(t *testing.T) {
	m := NewOggOpusMuxer(16000, 1, 0)
	out := m.MuxPackets([][]byte{{1, 2, 3}, {4, 5, 6}}, 160)
	pages := allPages(t, out)
	bos, eos := 0, 0
	var lastSeq uint32
	var sawFirst bool
	for _, p := range pages {
		if p.Flags&FlagBOS != 0 {
			bos++
		}
		if p.Flags&FlagEOS != 0 {
			eos++
		}
		if sawFirst {
			assert.Greater(t, p.SequenceNumber, lastSeq)
		}
		lastSeq = p.SequenceNumber
		sawFirst = true
	}
	assert.Equal(t, 1, bos)
	assert.Equal(t, 1, eos)
}

func TestDemuxRoundTripAllPacketLengths(t *testing.T) {
	for n := 1; n <= 12; n++ {
		var packets [][]byte
		for i := 0; i < n; i++ {
			pkt := make([]byte, 20+i*3)
			for j := range pkt {
				pkt[j] = byte((i + j) & 0xFF)
			}
			packets = append(packets, pkt)
		}
		m := NewOggOpusMuxer(16000, 1, 312)
		out := m.MuxPackets(packets, 160)
		var d OggDemuxer
		got := d.Demux(out)
		require.Len(t, got, n)
		for i := range packets {
			assert.Equal(t, packets[i], got[i])
		}
	}
}

func allPages(t *testing.T, data []byte) []*Page {
	t.Helper()
	var pages []*Page
	offset := 0
	for offset < len(data) {
		p, consumed, err := ParsePage(data[offset:])
		require.NoError(t, err)
		pages = append(pages, p)
		offset += consumed
	}
	return pages
}

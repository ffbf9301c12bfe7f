package font

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"sort"
)

const (
	woffHeaderSize   = 44
	woffTableDirSize = 20
	sfntHeaderSize   = 12
	sfntTableRecSize = 16
)

// Decode returns SFNT (TrueType/OpenType) bytes for data. WOFF 1.0 input is
// unpacked; SFNT input is returned unchanged.
func Decode(source string, data []byte) ([]byte, error) {
	switch {
	case len(data) < 4:
		return nil, &DecodeError{Source: source, Reason: "payload too short"}
	case bytes.HasPrefix(data, []byte("wOFF")):
		out, err := decodeWOFF(data)
		if err != nil {
			return nil, &DecodeError{Source: source, Reason: err.Error()}
		}
		return out, nil
	case bytes.HasPrefix(data, []byte("wOF2")):
		return nil, &DecodeError{Source: source, Reason: "WOFF2 is not supported"}
	case bytes.HasPrefix(data, []byte{0, 1, 0, 0}),
		bytes.HasPrefix(data, []byte("OTTO")),
		bytes.HasPrefix(data, []byte("true")),
		bytes.HasPrefix(data, []byte("ttcf")):
		return data, nil
	}
	return nil, &DecodeError{Source: source, Reason: "unrecognized font signature"}
}

type woffTable struct {
	tag        uint32
	offset     uint32
	compLength uint32
	origLength uint32
	checksum   uint32
}

func decodeWOFF(data []byte) ([]byte, error) {
	if len(data) < woffHeaderSize {
		return nil, fmt.Errorf("truncated WOFF header")
	}
	be := binary.BigEndian
	flavor := be.Uint32(data[4:8])
	numTables := int(be.Uint16(data[12:14]))
	if numTables == 0 {
		return nil, fmt.Errorf("WOFF has no tables")
	}
	if len(data) < woffHeaderSize+numTables*woffTableDirSize {
		return nil, fmt.Errorf("truncated WOFF table directory")
	}

	tables := make([]woffTable, numTables)
	for i := range tables {
		rec := data[woffHeaderSize+i*woffTableDirSize:]
		tables[i] = woffTable{
			tag:        be.Uint32(rec[0:4]),
			offset:     be.Uint32(rec[4:8]),
			compLength: be.Uint32(rec[8:12]),
			origLength: be.Uint32(rec[12:16]),
			checksum:   be.Uint32(rec[16:20]),
		}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].tag < tables[j].tag })

	bodies := make([][]byte, numTables)
	for i, t := range tables {
		end := uint64(t.offset) + uint64(t.compLength)
		if end > uint64(len(data)) || t.compLength > t.origLength {
			return nil, fmt.Errorf("table %d out of range", i)
		}
		raw := data[t.offset:end]
		if t.compLength == t.origLength {
			bodies[i] = raw
			continue
		}
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("table %d: %w", i, err)
		}
		body, err := io.ReadAll(io.LimitReader(zr, int64(t.origLength)+1))
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("table %d: %w", i, err)
		}
		if len(body) != int(t.origLength) {
			return nil, fmt.Errorf("table %d: inflated to %d bytes, want %d", i, len(body), t.origLength)
		}
		bodies[i] = body
	}

	var out bytes.Buffer
	header := make([]byte, sfntHeaderSize)
	entrySelector := bits.Len(uint(numTables)) - 1
	searchRange := (1 << entrySelector) * 16
	be.PutUint32(header[0:4], flavor)
	be.PutUint16(header[4:6], uint16(numTables))
	be.PutUint16(header[6:8], uint16(searchRange))
	be.PutUint16(header[8:10], uint16(entrySelector))
	be.PutUint16(header[10:12], uint16(numTables*16-searchRange))
	out.Write(header)

	offset := uint32(sfntHeaderSize + numTables*sfntTableRecSize)
	rec := make([]byte, sfntTableRecSize)
	for i, t := range tables {
		be.PutUint32(rec[0:4], t.tag)
		be.PutUint32(rec[4:8], t.checksum)
		be.PutUint32(rec[8:12], offset)
		be.PutUint32(rec[12:16], t.origLength)
		out.Write(rec)
		offset += pad4(uint32(len(bodies[i])))
	}
	for _, body := range bodies {
		out.Write(body)
		out.Write(make([]byte, pad4(uint32(len(body)))-uint32(len(body))))
	}
	return out.Bytes(), nil
}

func pad4(n uint32) uint32 {
	return (n + 3) &^ 3
}

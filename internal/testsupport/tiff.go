package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// TIFFLayout selects the container variant BuildTIFF produces.
type TIFFLayout struct {
	BigEndian bool
	BigTIFF   bool
}

// TIFFFixture is an encoded single-strip grayscale image.
type TIFFFixture struct {
	Data        []byte
	PixelOffset int
	Pixels      []byte
}

const fixtureSide = 4

type fixtureEntry struct {
	tag   uint16
	typ   uint16
	count uint64
	value uint64
	data  []byte
}

// BuildTIFF encodes a 4x4 8-bit grayscale TIFF whose first IFD carries
// description as its ImageDescription. The description is stored out of line
// after the pixel strip, and the IFD follows it.
func BuildTIFF(description string, layout TIFFLayout) TIFFFixture {
	var order binary.ByteOrder = binary.LittleEndian
	magic := "II"
	if layout.BigEndian {
		order = binary.BigEndian
		magic = "MM"
	}

	headerSize, countSize, entrySize, nextSize := 8, 2, 12, 4
	if layout.BigTIFF {
		headerSize, countSize, entrySize, nextSize = 16, 8, 20, 8
	}

	pixels := make([]byte, fixtureSide*fixtureSide)
	for i := range pixels {
		pixels[i] = byte(i * 13)
	}

	buf := make([]byte, headerSize)
	copy(buf, magic)
	pixelOffset := len(buf)
	buf = append(buf, pixels...)

	descOffset := len(buf)
	desc := append([]byte(description), 0)
	buf = append(buf, desc...)
	if len(buf)%2 == 1 {
		buf = append(buf, 0)
	}

	entries := []fixtureEntry{
		{tag: 256, typ: 3, count: 1, value: fixtureSide},
		{tag: 257, typ: 3, count: 1, value: fixtureSide},
		{tag: 258, typ: 3, count: 1, value: 8},
		{tag: 259, typ: 3, count: 1, value: 1},
		{tag: 262, typ: 3, count: 1, value: 1},
		{tag: 270, typ: 2, count: uint64(len(desc)), value: uint64(descOffset)},
		{tag: 273, typ: 4, count: 1, value: uint64(pixelOffset)},
		{tag: 277, typ: 3, count: 1, value: 1},
		{tag: 278, typ: 3, count: 1, value: fixtureSide},
		{tag: 279, typ: 4, count: 1, value: uint64(len(pixels))},
	}

	ifdOffset := len(buf)
	ifd := make([]byte, countSize+len(entries)*entrySize+nextSize)
	if layout.BigTIFF {
		order.PutUint64(ifd, uint64(len(entries)))
	} else {
		order.PutUint16(ifd, uint16(len(entries)))
	}
	inline := uint64(4)
	if layout.BigTIFF {
		inline = 8
	}
	for i, e := range entries {
		slot := ifd[countSize+i*entrySize : countSize+(i+1)*entrySize]
		order.PutUint16(slot[0:2], e.tag)
		order.PutUint16(slot[2:4], e.typ)
		var field []byte
		if layout.BigTIFF {
			order.PutUint64(slot[4:12], e.count)
			field = slot[12:20]
		} else {
			order.PutUint32(slot[4:8], uint32(e.count))
			field = slot[8:12]
		}
		switch {
		case e.tag == 270 && e.count <= inline:
			copy(field, desc)
		case e.typ == 3:
			order.PutUint16(field[0:2], uint16(e.value))
		case layout.BigTIFF:
			order.PutUint64(field, e.value)
		default:
			order.PutUint32(field, uint32(e.value))
		}
	}
	buf = append(buf, ifd...)

	if layout.BigTIFF {
		order.PutUint16(buf[2:4], 43)
		order.PutUint16(buf[4:6], 8)
		order.PutUint64(buf[8:16], uint64(ifdOffset))
	} else {
		order.PutUint16(buf[2:4], 42)
		order.PutUint32(buf[4:8], uint32(ifdOffset))
	}

	return TIFFFixture{Data: buf, PixelOffset: pixelOffset, Pixels: pixels}
}

// WriteTIFF writes a BuildTIFF fixture to path.
func WriteTIFF(t testing.TB, path, description string, layout TIFFLayout) TIFFFixture {
	t.Helper()
	fixture := BuildTIFF(description, layout)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, fixture.Data, 0o644); err != nil {
		t.Fatalf("write tiff %s: %v", path, err)
	}
	return fixture
}

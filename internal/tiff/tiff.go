// Package tiff reads and replaces the ImageDescription of a TIFF or BigTIFF
// file's first IFD without touching any other bytes of the container.
package tiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	tagImageDescription = 270

	typeByte      = 1
	typeASCII     = 2
	typeUndefined = 7

	classicMagic = 42
	bigMagic     = 43
)

var (
	ErrNotTIFF       = errors.New("tiff: not a TIFF file")
	ErrNoDescription = errors.New("tiff: first IFD has no ImageDescription")
	ErrCorrupt       = errors.New("tiff: corrupt structure")
)

// layout describes where the description entry lives in a file.
type layout struct {
	order binary.ByteOrder
	big   bool
	// entry is the absolute offset of the ImageDescription IFD entry.
	entry int64
	count uint64
	// value is the description offset, or the entry's value field when inline.
	value int64
}

func (l layout) inlineSize() uint64 {
	if l.big {
		return 8
	}
	return 4
}

// countField is the absolute offset of the entry's count field. The value
// field follows it directly.
func (l layout) countField() int64 {
	return l.entry + 4
}

func (l layout) valueField() int64 {
	if l.big {
		return l.entry + 12
	}
	return l.entry + 8
}

// ReadDescription returns the first IFD's ImageDescription with trailing NUL
// bytes removed.
func ReadDescription(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	loc, err := locate(file, info.Size())
	if err != nil {
		return "", err
	}
	buf := make([]byte, loc.count)
	if _, err := file.ReadAt(buf, loc.value); err != nil {
		return "", fmt.Errorf("%w: read description: %v", ErrCorrupt, err)
	}
	return string(bytes.TrimRight(buf, "\x00")), nil
}

// WriteDescription replaces the first IFD's ImageDescription with text.
//
// Text longer than the entry's inline capacity is appended at end of file and
// synced before the entry's count and offset are patched in a single write.
// On failure the file is truncated back to its original length, so the old
// description stays referenced.
func WriteDescription(path, text string) error {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	originalSize := info.Size()
	loc, err := locate(file, originalSize)
	if err != nil {
		return err
	}

	payload := append([]byte(text), 0)
	count := uint64(len(payload))

	if count <= loc.inlineSize() {
		return patchEntry(file, loc, count, payload)
	}

	offset := originalSize
	if offset%2 == 1 {
		// Offsets must land on a word boundary.
		payload = append([]byte{0}, payload...)
		offset++
	}
	if !loc.big && uint64(offset)+count > uint64(^uint32(0)) {
		return fmt.Errorf("tiff: description would exceed classic TIFF 4GiB offset limit")
	}

	rollback := func(cause error) error {
		if err := file.Truncate(originalSize); err != nil {
			return errors.Join(cause, fmt.Errorf("tiff: truncate after failed write: %w", err))
		}
		return cause
	}

	if _, err := file.WriteAt(payload, originalSize); err != nil {
		return rollback(fmt.Errorf("tiff: append description: %w", err))
	}
	if err := file.Sync(); err != nil {
		return rollback(fmt.Errorf("tiff: sync description: %w", err))
	}

	value := make([]byte, loc.inlineSize())
	if loc.big {
		loc.order.PutUint64(value, uint64(offset))
	} else {
		loc.order.PutUint32(value, uint32(offset))
	}
	if err := patchEntry(file, loc, count, value); err != nil {
		return rollback(err)
	}
	return nil
}

// patchEntry overwrites the count and value fields of the entry together.
func patchEntry(file *os.File, loc layout, count uint64, value []byte) error {
	size := loc.inlineSize()
	patch := make([]byte, 2*size)
	if loc.big {
		loc.order.PutUint64(patch, count)
	} else {
		loc.order.PutUint32(patch, uint32(count))
	}
	copy(patch[size:], value)

	if _, err := file.WriteAt(patch, loc.countField()); err != nil {
		return fmt.Errorf("tiff: patch description entry: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("tiff: sync description entry: %w", err)
	}
	return nil
}

func locate(r io.ReaderAt, size int64) (layout, error) {
	header := make([]byte, 16)
	n, err := r.ReadAt(header, 0)
	if n < 8 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return layout{}, fmt.Errorf("%w: %v", ErrNotTIFF, err)
	}

	var loc layout
	switch string(header[:2]) {
	case "II":
		loc.order = binary.LittleEndian
	case "MM":
		loc.order = binary.BigEndian
	default:
		return layout{}, ErrNotTIFF
	}

	var ifd int64
	switch loc.order.Uint16(header[2:4]) {
	case classicMagic:
		ifd = int64(loc.order.Uint32(header[4:8]))
	case bigMagic:
		if n < 16 || loc.order.Uint16(header[4:6]) != 8 {
			return layout{}, fmt.Errorf("%w: bad BigTIFF header", ErrNotTIFF)
		}
		loc.big = true
		ifd = int64(loc.order.Uint64(header[8:16]))
	default:
		return layout{}, ErrNotTIFF
	}
	if ifd <= 0 || ifd >= size {
		return layout{}, fmt.Errorf("%w: first IFD offset %d out of range", ErrCorrupt, ifd)
	}

	countSize, entrySize := int64(2), int64(12)
	if loc.big {
		countSize, entrySize = 8, 20
	}
	countBuf := make([]byte, countSize)
	if _, err := r.ReadAt(countBuf, ifd); err != nil {
		return layout{}, fmt.Errorf("%w: read IFD entry count: %v", ErrCorrupt, err)
	}
	var count uint64
	if loc.big {
		count = loc.order.Uint64(countBuf)
	} else {
		count = uint64(loc.order.Uint16(countBuf))
	}
	if count == 0 || ifd+countSize > size || count > uint64((size-ifd-countSize)/entrySize) {
		return layout{}, fmt.Errorf("%w: IFD with %d entries overruns file", ErrCorrupt, count)
	}
	entries := int64(count)

	table := make([]byte, entries*entrySize)
	if _, err := r.ReadAt(table, ifd+countSize); err != nil {
		return layout{}, fmt.Errorf("%w: read IFD: %v", ErrCorrupt, err)
	}
	for i := int64(0); i < entries; i++ {
		entry := table[i*entrySize : (i+1)*entrySize]
		if loc.order.Uint16(entry[0:2]) != tagImageDescription {
			continue
		}
		switch loc.order.Uint16(entry[2:4]) {
		case typeASCII, typeByte, typeUndefined:
		default:
			return layout{}, fmt.Errorf("%w: ImageDescription has unexpected type", ErrCorrupt)
		}
		loc.entry = ifd + countSize + i*entrySize
		if loc.big {
			loc.count = loc.order.Uint64(entry[4:12])
		} else {
			loc.count = uint64(loc.order.Uint32(entry[4:8]))
		}
		if loc.count <= loc.inlineSize() {
			loc.value = loc.valueField()
		} else if loc.big {
			loc.value = int64(loc.order.Uint64(entry[12:20]))
		} else {
			loc.value = int64(loc.order.Uint32(entry[8:12]))
		}
		if loc.value < 0 || loc.count > uint64(size) || uint64(loc.value) > uint64(size)-loc.count {
			return layout{}, fmt.Errorf("%w: ImageDescription points outside the file", ErrCorrupt)
		}
		return loc, nil
	}
	return layout{}, ErrNoDescription
}

package dfuse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Parse parses a DfuSe file from the given file path.
func Parse(path string) (*FirmwareImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseReader(f)
}

// ParseReader parses a DfuSe file from any io.Reader.
func ParseReader(r io.Reader) (*FirmwareImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Decode(data)
}

// Decode parses a complete DfuSe file held in memory. Fatal problems
// return an error matching ErrFormat; discrepancies between declared and
// actual sizes are collected in the returned image's Warnings.
func Decode(data []byte) (*FirmwareImage, error) {
	if len(data) < MinFileSize {
		return nil, ErrFileTooSmall
	}

	c := &cursor{data: data}

	// Prefix:
	// 0-4: "DfuSe"
	// 5: bVersion
	// 6-9: DFUImageSize (little-endian)
	// 10: bTargets
	prefix, err := c.next("DfuSe prefix", PrefixSize)
	if err != nil {
		return nil, err
	}
	if string(prefix[0:5]) != PrefixSignature {
		return nil, ErrBadPrefixSignature
	}
	if prefix[5] != FormatVersion {
		return nil, &VersionError{Version: prefix[5]}
	}

	img := &FirmwareImage{
		Version:      prefix[5],
		DeclaredSize: binary.LittleEndian.Uint32(prefix[6:10]),
	}

	numTargets := int(prefix[10])
	img.Targets = make([]*Target, 0, numTargets)
	for i := 1; i <= numTargets; i++ {
		target, err := parseTarget(c, i)
		if err != nil {
			return nil, err
		}
		img.Targets = append(img.Targets, target)
	}

	imageEnd := c.off
	if imageEnd != int(img.DeclaredSize) {
		img.Warnings = append(img.Warnings, &SizeWarning{
			Field:    "image size",
			Declared: int(img.DeclaredSize),
			Actual:   imageEnd,
		})
	}

	if err := parseSuffix(c, img); err != nil {
		return nil, err
	}

	if c.off != len(data) {
		img.Warnings = append(img.Warnings, &SizeWarning{
			Field:    "file size",
			Declared: len(data),
			Actual:   c.off,
		})
	}

	if calculated := fileCRC(data[:c.off-4]); calculated != img.CRC {
		img.Warnings = append(img.Warnings, &CRCWarning{
			Stored:     img.CRC,
			Calculated: calculated,
		})
	}

	return img, nil
}

// parseTarget parses one target prefix and its elements.
//
// Target prefix:
//
//	0-5: "Target"
//	6: bAlternateSetting
//	7-10: bTargetNamed (little-endian)
//	11-265: szTargetName (NUL padded)
//	266-269: dwTargetSize (little-endian)
//	270-273: dwNbElements (little-endian)
func parseTarget(c *cursor, index int) (*Target, error) {
	start := c.off
	prefix, err := c.next("target prefix", TargetPrefixSize)
	if err != nil {
		return nil, err
	}
	if string(prefix[0:6]) != TargetSignature {
		return nil, &TargetSignatureError{Target: index, Offset: start}
	}

	t := &Target{
		AlternateSetting:     prefix[6],
		Named:                binary.LittleEndian.Uint32(prefix[7:11]) != 0,
		DeclaredSize:         binary.LittleEndian.Uint32(prefix[266:270]),
		DeclaredElementCount: binary.LittleEndian.Uint32(prefix[270:274]),
	}
	if t.Named {
		name := prefix[11 : 11+TargetNameSize]
		if i := bytes.IndexByte(name, 0); i >= 0 {
			name = name[:i]
		}
		t.Name = string(name)
	}

	// Each element needs at least a header, don't trust the count for capacity.
	capacity := uint64(t.DeclaredElementCount)
	if limit := uint64(c.remaining() / ElementHeaderSize); capacity > limit {
		capacity = limit
	}
	t.Elements = make([]*Element, 0, capacity)

	for n := uint32(0); n < t.DeclaredElementCount; n++ {
		header, err := c.next("element header", ElementHeaderSize)
		if err != nil {
			return nil, err
		}
		address := binary.LittleEndian.Uint32(header[0:4])
		size := binary.LittleEndian.Uint32(header[4:8])

		// The payload must leave room for the suffix.
		if uint64(size)+SuffixSize > uint64(c.remaining()) {
			return nil, &TruncatedError{
				Section: fmt.Sprintf("element %d of target %d", n+1, index),
				Offset:  c.off,
				Need:    int(size) + SuffixSize,
				Have:    c.remaining(),
			}
		}
		payload, _ := c.next("element payload", int(size))

		e := &Element{Address: address, Data: make([]byte, size)}
		copy(e.Data, payload)
		t.Elements = append(t.Elements, e)
	}

	if actual := t.Size(); actual != t.DeclaredSize {
		return nil, &TargetSizeError{Target: index, Declared: t.DeclaredSize, Actual: actual}
	}

	return t, nil
}

// parseSuffix parses the 16-byte DFU suffix.
//
// Suffix:
//
//	0-1: bcdDevice
//	2-3: idProduct
//	4-5: idVendor
//	6-7: bcdDFU (0x011A)
//	8-10: "UFD"
//	11: bLength
//	12-15: dwCRC
func parseSuffix(c *cursor, img *FirmwareImage) error {
	suffix, err := c.next("DFU suffix", SuffixSize)
	if err != nil {
		return err
	}
	if string(suffix[8:11]) != SuffixSignature {
		return ErrBadSuffixSignature
	}
	if version := binary.LittleEndian.Uint16(suffix[6:8]); version != DFUVersion {
		return &DFUVersionError{Version: version}
	}

	img.Device = binary.LittleEndian.Uint16(suffix[0:2])
	img.Product = binary.LittleEndian.Uint16(suffix[2:4])
	img.Vendor = binary.LittleEndian.Uint16(suffix[4:6])
	img.CRC = binary.LittleEndian.Uint32(suffix[12:16])

	if suffix[11] != SuffixSize {
		img.Warnings = append(img.Warnings, &SizeWarning{
			Field:    "suffix length",
			Declared: int(suffix[11]),
			Actual:   SuffixSize,
		})
	}
	return nil
}

// fileCRC computes the DFU suffix CRC: CRC-32 without the final inversion.
func fileCRC(data []byte) uint32 {
	return ^crc32.ChecksumIEEE(data)
}

// cursor hands out consecutive sections of a byte slice.
type cursor struct {
	data []byte
	off  int
}

func (c *cursor) remaining() int {
	return len(c.data) - c.off
}

func (c *cursor) next(section string, n int) ([]byte, error) {
	if n < 0 || n > c.remaining() {
		return nil, &TruncatedError{
			Section: section,
			Offset:  c.off,
			Need:    n,
			Have:    c.remaining(),
		}
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

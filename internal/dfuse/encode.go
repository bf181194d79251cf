package dfuse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Encode serializes the image to the DfuSe file layout. Declared sizes,
// counts and the suffix CRC are recomputed from the contents.
func (img *FirmwareImage) Encode() ([]byte, error) {
	if len(img.Targets) > 0xFF {
		return nil, fmt.Errorf("too many targets: %d, maximum is 255", len(img.Targets))
	}

	version := img.Version
	if version == 0 {
		version = FormatVersion
	}

	imageSize := PrefixSize
	for _, t := range img.Targets {
		imageSize += TargetPrefixSize + int(t.Size())
	}

	var buf bytes.Buffer
	buf.Grow(imageSize + SuffixSize)

	prefix := make([]byte, PrefixSize)
	copy(prefix[0:5], PrefixSignature)
	prefix[5] = version
	binary.LittleEndian.PutUint32(prefix[6:10], uint32(imageSize))
	prefix[10] = byte(len(img.Targets))
	buf.Write(prefix)

	for i, t := range img.Targets {
		if len(t.Name) > TargetNameSize {
			return nil, fmt.Errorf("target %d name is %d bytes, maximum is %d", i+1, len(t.Name), TargetNameSize)
		}

		tp := make([]byte, TargetPrefixSize)
		copy(tp[0:6], TargetSignature)
		tp[6] = t.AlternateSetting
		if t.Named {
			binary.LittleEndian.PutUint32(tp[7:11], 1)
			copy(tp[11:11+TargetNameSize], t.Name)
		}
		binary.LittleEndian.PutUint32(tp[266:270], t.Size())
		binary.LittleEndian.PutUint32(tp[270:274], uint32(len(t.Elements)))
		buf.Write(tp)

		for _, e := range t.Elements {
			header := make([]byte, ElementHeaderSize)
			binary.LittleEndian.PutUint32(header[0:4], e.Address)
			binary.LittleEndian.PutUint32(header[4:8], e.Size())
			buf.Write(header)
			buf.Write(e.Data)
		}
	}

	suffix := make([]byte, SuffixSize)
	binary.LittleEndian.PutUint16(suffix[0:2], img.Device)
	binary.LittleEndian.PutUint16(suffix[2:4], img.Product)
	binary.LittleEndian.PutUint16(suffix[4:6], img.Vendor)
	binary.LittleEndian.PutUint16(suffix[6:8], DFUVersion)
	copy(suffix[8:11], SuffixSignature)
	suffix[11] = SuffixSize
	buf.Write(suffix[:12])

	crc := fileCRC(buf.Bytes())
	binary.LittleEndian.PutUint32(suffix[12:16], crc)
	buf.Write(suffix[12:16])

	return buf.Bytes(), nil
}

// WriteTo writes the encoded image to w.
func (img *FirmwareImage) WriteTo(w io.Writer) (int64, error) {
	data, err := img.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

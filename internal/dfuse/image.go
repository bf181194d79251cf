package dfuse

// Layout sizes of the DfuSe container sections, in bytes.
const (
	PrefixSize        = 11
	TargetPrefixSize  = 274
	ElementHeaderSize = 8
	SuffixSize        = 16

	// MinFileSize is a prefix, one target, one empty element and a suffix.
	MinFileSize = PrefixSize + SuffixSize + TargetPrefixSize + ElementHeaderSize

	TargetNameSize = 255
)

// Format constants
const (
	FormatVersion = 0x01
	DFUVersion    = 0x011A

	PrefixSignature = "DfuSe"
	TargetSignature = "Target"
	SuffixSignature = "UFD"
)

// FirmwareImage is a parsed DfuSe container.
type FirmwareImage struct {
	Version byte

	// Targets are kept in file order, which is the order they are flashed.
	Targets []*Target

	// DeclaredSize is the DFUImageSize field of the prefix.
	DeclaredSize uint32

	// Suffix identification fields
	Device  uint16
	Product uint16
	Vendor  uint16
	CRC     uint32

	// Warnings holds non-fatal discrepancies found while parsing.
	Warnings []error
}

// Target is the image for one interface alternate setting.
type Target struct {
	AlternateSetting byte
	Named            bool
	Name             string
	Elements         []*Element

	// Declared fields from the target prefix
	DeclaredSize         uint32
	DeclaredElementCount uint32
}

// Element is a contiguous block of memory to program.
type Element struct {
	Address uint32
	Data    []byte
}

// Size returns the payload length.
func (e *Element) Size() uint32 {
	return uint32(len(e.Data))
}

// End returns the first address past the element.
func (e *Element) End() uint64 {
	return uint64(e.Address) + uint64(len(e.Data))
}

// Size returns the number of bytes the target occupies after its prefix.
func (t *Target) Size() uint32 {
	var size uint32
	for _, e := range t.Elements {
		size += ElementHeaderSize + e.Size()
	}
	return size
}

// PayloadSize returns the total number of payload bytes in all targets.
func (img *FirmwareImage) PayloadSize() int {
	total := 0
	for _, t := range img.Targets {
		for _, e := range t.Elements {
			total += len(e.Data)
		}
	}
	return total
}

// NewBinaryImage wraps a raw binary as a single-target, single-element
// image to be written at address.
func NewBinaryImage(address uint32, data []byte, vendor, product, device uint16) *FirmwareImage {
	payload := make([]byte, len(data))
	copy(payload, data)

	return &FirmwareImage{
		Version: FormatVersion,
		Targets: []*Target{{
			AlternateSetting: 0,
			Named:            true,
			Name:             "ST...",
			Elements:         []*Element{{Address: address, Data: payload}},
		}},
		Device:  device,
		Product: product,
		Vendor:  vendor,
	}
}

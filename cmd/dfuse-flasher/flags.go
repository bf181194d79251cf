package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// addressValue is a 32-bit address flag accepting hex (0x08000000) or
// decimal input.
type addressValue uint32

var _ pflag.Value = (*addressValue)(nil)

func (a *addressValue) String() string {
	return fmt.Sprintf("0x%08X", uint32(*a))
}

func (a *addressValue) Set(s string) error {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return fmt.Errorf("invalid address %q", s)
	}
	*a = addressValue(v)
	return nil
}

func (a *addressValue) Type() string {
	return "address"
}

// idValue is a USB vendor, product or release number. It is always hex,
// with or without the 0x prefix, as lsusb prints it.
type idValue uint16

var _ pflag.Value = (*idValue)(nil)

func (i *idValue) String() string {
	return fmt.Sprintf("0x%04X", uint16(*i))
}

func (i *idValue) Set(s string) error {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return fmt.Errorf("invalid USB ID %q", s)
	}
	*i = idValue(v)
	return nil
}

func (i *idValue) Type() string {
	return "id"
}

// sizeValue is a byte count accepting hex or decimal input.
type sizeValue int

var _ pflag.Value = (*sizeValue)(nil)

func (v *sizeValue) String() string {
	return strconv.Itoa(int(*v))
}

func (v *sizeValue) Set(s string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 31)
	if err != nil {
		return fmt.Errorf("invalid size %q", s)
	}
	*v = sizeValue(n)
	return nil
}

func (v *sizeValue) Type() string {
	return "bytes"
}

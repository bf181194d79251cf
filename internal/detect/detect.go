package detect

import (
	"fmt"
	"sort"

	usb "github.com/google/gousb"
)

// Interface class codes of a DFU function.
const (
	ClassApplication usb.Class    = 0xFE
	SubClassDFU      usb.Class    = 0x01
	ProtocolRuntime  usb.Protocol = 0x01
	ProtocolDFU      usb.Protocol = 0x02
)

// Result represents one DFU alternate setting exposed by a USB device.
type Result struct {
	Bus       int
	Address   int
	Vendor    usb.ID
	Product   usb.ID
	Config    int
	Interface int
	Alternate int
	Runtime   bool
	Name      string
}

// String formats the result the way dfu-util lists interfaces.
func (r Result) String() string {
	mode := "DFU"
	if r.Runtime {
		mode = "Runtime"
	}
	return fmt.Sprintf("Found %s: [%s:%s] devnum=%d, cfg=%d, intf=%d, alt=%d, name=%q",
		mode, r.Vendor, r.Product, r.Address, r.Config, r.Interface, r.Alternate, r.Name)
}

// ListDevices scans the USB bus and returns every DFU interface found.
func ListDevices() ([]Result, error) {
	ctx := usb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *usb.DeviceDesc) bool {
		return len(dfuSettings(desc)) > 0
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	// OpenDevices reports devices it could not open but still returns the
	// others.
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("failed to open USB devices: %w", err)
	}

	var results []Result
	for _, d := range devs {
		for _, r := range dfuSettings(d.Desc) {
			if name, err := d.InterfaceDescription(r.Config, r.Interface, r.Alternate); err == nil {
				r.Name = name
			}
			results = append(results, r)
		}
	}

	return results, nil
}

// dfuSettings returns the DFU alternate settings of a device in
// configuration, interface and alternate setting order.
func dfuSettings(desc *usb.DeviceDesc) []Result {
	configs := make([]int, 0, len(desc.Configs))
	for n := range desc.Configs {
		configs = append(configs, n)
	}
	sort.Ints(configs)

	var results []Result
	for _, n := range configs {
		cfg := desc.Configs[n]
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != ClassApplication || alt.SubClass != SubClassDFU {
					continue
				}
				results = append(results, Result{
					Bus:       desc.Bus,
					Address:   desc.Address,
					Vendor:    desc.Vendor,
					Product:   desc.Product,
					Config:    cfg.Number,
					Interface: alt.Number,
					Alternate: alt.Alternate,
					Runtime:   alt.Protocol == ProtocolRuntime,
				})
			}
		}
	}
	return results
}

// Package usbdfu talks to a DFU interface over libusb.
package usbdfu

import (
	"errors"
	"fmt"

	usb "github.com/google/gousb"

	"github.com/bigbag/dfuse-flasher/internal/protocol"
)

const (
	requestOut = usb.ControlOut | usb.ControlClass | usb.ControlInterface
	requestIn  = usb.ControlIn | usb.ControlClass | usb.ControlInterface
)

// controller is the part of *usb.Device a connection needs.
type controller interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

// Error describes a failed USB operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	return "usb: " + e.Op + ": " + e.Err.Error()
}

func wrapErr(op string, err *error) {
	if *err != nil {
		*err = &Error{op, *err}
	}
}

// Options selects the device and DFU interface to open.
type Options struct {
	Vendor    usb.ID
	Product   usb.ID
	Config    int
	Interface int
	Alternate int
}

// Conn is an open DFU interface. It implements protocol.Transport and
// protocol.AltSetter.
type Conn struct {
	ctx  *usb.Context
	dev  *usb.Device
	cfg  *usb.Config
	intf *usb.Interface

	ctrl      controller
	iid       uint16
	alt       uint8
	statusBuf [protocol.StatusPayloadSize]byte
}

// Open claims the DFU interface of the first device matching the vendor
// and product IDs.
func Open(o Options) (conn *Conn, err error) {
	defer wrapErr("open", &err)

	if o.Interface < 0 || o.Interface > 0xFF || o.Alternate < 0 || o.Alternate > 0xFF {
		return nil, fmt.Errorf("interface %d alt %d out of range", o.Interface, o.Alternate)
	}

	ctx := usb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(o.Vendor, o.Product)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("no device %s:%s found", o.Vendor, o.Product)
	}

	c := &Conn{ctx: ctx, dev: dev, ctrl: dev, iid: uint16(o.Interface), alt: uint8(o.Alternate)}

	if err = dev.SetAutoDetach(true); err != nil {
		c.Close()
		return nil, err
	}

	c.cfg, err = dev.Config(o.Config)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.intf, err = c.cfg.Interface(o.Interface, o.Alternate)
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}

// Close releases the interface and the device.
func (c *Conn) Close() error {
	var errs []error
	if c.intf != nil {
		c.intf.Close()
		c.intf = nil
	}
	if c.cfg != nil {
		errs = append(errs, c.cfg.Close())
		c.cfg = nil
	}
	if c.dev != nil {
		errs = append(errs, c.dev.Close())
		c.dev = nil
	}
	if c.ctx != nil {
		errs = append(errs, c.ctx.Close())
		c.ctx = nil
	}

	err := errors.Join(errs...)
	wrapErr("close", &err)
	return err
}

// Interface returns the claimed interface number.
func (c *Conn) Interface() int {
	return int(c.iid)
}

// AltSetting returns the active alternate setting.
func (c *Conn) AltSetting() uint8 {
	return c.alt
}

// Download sends DFU_DNLOAD with the given block number.
func (c *Conn) Download(data []byte, transaction uint16) (n int, err error) {
	defer wrapErr("download", &err)
	return c.ctrl.Control(requestOut, protocol.ReqDnload, transaction, c.iid, data)
}

// Upload sends DFU_UPLOAD and reads at most len(buf) bytes.
func (c *Conn) Upload(buf []byte, transaction uint16) (n int, err error) {
	defer wrapErr("upload", &err)
	return c.ctrl.Control(requestIn, protocol.ReqUpload, transaction, c.iid, buf)
}

// GetStatus sends DFU_GETSTATUS and decodes the reply.
func (c *Conn) GetStatus() (st protocol.Status, err error) {
	defer wrapErr("get status", &err)

	n, err := c.ctrl.Control(requestIn, protocol.ReqGetStatus, 0, c.iid, c.statusBuf[:])
	if err != nil {
		return st, err
	}
	return protocol.DecodeStatus(c.statusBuf[:n])
}

// ClearStatus sends DFU_CLRSTATUS.
func (c *Conn) ClearStatus() (err error) {
	defer wrapErr("clear status", &err)
	_, err = c.ctrl.Control(requestOut, protocol.ReqClrStatus, 0, c.iid, nil)
	return
}

// Abort sends DFU_ABORT.
func (c *Conn) Abort() (err error) {
	defer wrapErr("abort", &err)
	_, err = c.ctrl.Control(requestOut, protocol.ReqAbort, 0, c.iid, nil)
	return
}

// SetAltSetting switches the claimed interface to another alternate
// setting.
func (c *Conn) SetAltSetting(alt uint8) (err error) {
	defer wrapErr("set alt setting", &err)

	if c.cfg == nil {
		return errors.New("interface not claimed")
	}
	if c.intf != nil {
		c.intf.Close()
		c.intf = nil
	}

	intf, err := c.cfg.Interface(int(c.iid), int(alt))
	if err != nil {
		return err
	}
	c.intf = intf
	c.alt = alt
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	usb "github.com/google/gousb"
	"github.com/spf13/cobra"

	"github.com/bigbag/dfuse-flasher/internal/detect"
	"github.com/bigbag/dfuse-flasher/internal/dfuse"
	"github.com/bigbag/dfuse-flasher/internal/flasher"
	"github.com/bigbag/dfuse-flasher/internal/serial"
	"github.com/bigbag/dfuse-flasher/internal/usbdfu"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// STMicroelectronics system bootloader
const (
	defaultVendor  = 0x0483
	defaultProduct = 0xDF11

	defaultUploadLimit = 0x8000
)

var (
	vidFlag idValue = defaultVendor
	pidFlag idValue = defaultProduct
	bcdFlag idValue

	cfgFlag  int
	intfFlag int
	altFlag  int

	transferSizeFlag sizeValue = flasher.DefaultTransferSize
	pageSizeFlag     sizeValue = flasher.DefaultPageSize
	uploadLimitFlag  sizeValue = defaultUploadLimit

	addressFlag    addressValue
	minAddressFlag addressValue
	maxAddressFlag addressValue = 0xFFFFFFFF

	resetPortFlag   string
	resetSettleFlag time.Duration
	verboseFlag     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dfuse-flasher",
		Short: "Flash STM32 devices over USB DfuSe",
		Long: `DfuSe Flasher reads and writes the memory of devices running the
STMicroelectronics DfuSe USB bootloader.

It flashes .dfu containers or raw binaries, reads memory back to a file
and packs binaries into .dfu containers.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show protocol details")

	// Upload command
	uploadCmd := &cobra.Command{
		Use:   "upload <file.bin>",
		Short: "Read device memory to a file",
		Long: `Read device memory to a file.

Reading starts at the current address pointer, or at --address if given,
and stops when the device returns a short block or --upload-limit bytes
have been read (0 = no limit).`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
	addDeviceFlags(uploadCmd)
	uploadCmd.Flags().Var(&addressFlag, "address", "Start address")
	uploadCmd.Flags().Var(&uploadLimitFlag, "upload-limit", "Maximum number of bytes to read")

	// Download command
	downloadCmd := &cobra.Command{
		Use:   "download <file.dfu>",
		Short: "Flash a DfuSe container",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownload,
	}
	addDeviceFlags(downloadCmd)
	addWriteFlags(downloadCmd)

	// Download binary command
	downloadBinCmd := &cobra.Command{
		Use:   "download-bin <file.bin>",
		Short: "Flash a raw binary at an address",
		Args:  cobra.ExactArgs(1),
		RunE:  runDownloadBin,
	}
	addDeviceFlags(downloadBinCmd)
	addWriteFlags(downloadBinCmd)
	downloadBinCmd.Flags().Var(&addressFlag, "address", "Address to write the binary to")
	downloadBinCmd.MarkFlagRequired("address")

	// Info command
	infoCmd := &cobra.Command{
		Use:   "info <file.dfu>",
		Short: "Show the contents of a DfuSe container",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}

	// Pack command
	packCmd := &cobra.Command{
		Use:   "pack <in.bin> <out.dfu>",
		Short: "Wrap a raw binary into a DfuSe container",
		Args:  cobra.ExactArgs(2),
		RunE:  runPack,
	}
	packCmd.Flags().Var(&addressFlag, "address", "Load address of the binary")
	packCmd.Flags().Var(&vidFlag, "vid", "USB vendor ID stored in the suffix")
	packCmd.Flags().Var(&pidFlag, "pid", "USB product ID stored in the suffix")
	packCmd.Flags().Var(&bcdFlag, "bcd", "Device release number stored in the suffix")
	packCmd.MarkFlagRequired("address")

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List DFU interfaces and serial ports",
		RunE:  runList,
	}

	// Reset command
	resetCmd := &cobra.Command{
		Use:   "reset <port>",
		Short: "Reboot a board into its bootloader with a 1200 baud touch",
		Args:  cobra.ExactArgs(1),
		RunE:  runReset,
	}
	resetCmd.Flags().DurationVar(&resetSettleFlag, "settle", 2*time.Second, "Time to wait for the device to re-enumerate")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dfuse-flasher %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(uploadCmd, downloadCmd, downloadBinCmd, infoCmd, packCmd, listCmd, resetCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func addDeviceFlags(cmd *cobra.Command) {
	cmd.Flags().Var(&vidFlag, "vid", "USB vendor ID")
	cmd.Flags().Var(&pidFlag, "pid", "USB product ID")
	cmd.Flags().IntVar(&cfgFlag, "cfg", 1, "USB configuration")
	cmd.Flags().IntVar(&intfFlag, "intf", 0, "DFU interface number")
	cmd.Flags().IntVar(&altFlag, "alt", 0, "DFU alternate setting")
	cmd.Flags().Var(&transferSizeFlag, "transfer-size", "Bytes per USB transfer")
	cmd.Flags().StringVar(&resetPortFlag, "reset-port", "", "Serial port to touch at 1200 baud before connecting")
	cmd.Flags().DurationVar(&resetSettleFlag, "settle", 2*time.Second, "Time to wait after --reset-port")
}

func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().Var(&pageSizeFlag, "page-size", "Flash erase page size")
	cmd.Flags().Var(&minAddressFlag, "min-address", "Lowest address that may be written")
	cmd.Flags().Var(&maxAddressFlag, "max-address", "Address past the last one that may be written")
}

// flasherOptions builds the flasher configuration from the command flags.
func flasherOptions(cmd *cobra.Command) []flasher.Option {
	opts := []flasher.Option{
		flasher.WithTransferSize(int(transferSizeFlag)),
		flasher.WithPageSize(int(pageSizeFlag)),
		flasher.WithUploadLimit(int(uploadLimitFlag)),
		flasher.WithAltSetting(uint8(altFlag)),
		flasher.WithLogger(&consoleLogger{out: os.Stdout, errOut: os.Stderr, verbose: verboseFlag}),
	}

	flags := cmd.Flags()
	if flags.Changed("min-address") || flags.Changed("max-address") {
		opts = append(opts, flasher.WithSafeWindow(uint32(minAddressFlag), uint32(maxAddressFlag)))
	}
	return opts
}

// openDevice is replaced in tests.
var openDevice = openDFU

// openDFU optionally resets a board into its bootloader, then claims the
// DFU interface and brings it to dfuIDLE.
func openDFU(opts []flasher.Option) (io.Closer, *flasher.Flasher, error) {
	if resetPortFlag != "" {
		fmt.Printf("Resetting %s into bootloader...\n", resetPortFlag)
		if err := serial.TouchReset(resetPortFlag, resetSettleFlag); err != nil {
			return nil, nil, fmt.Errorf("reset failed: %w", err)
		}
	}

	conn, err := usbdfu.Open(usbdfu.Options{
		Vendor:    usb.ID(vidFlag),
		Product:   usb.ID(pidFlag),
		Config:    cfgFlag,
		Interface: intfFlag,
		Alternate: altFlag,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open device: %w", err)
	}

	fmt.Printf("Device: [%s:%s] cfg=%d, intf=%d, alt=%d\n",
		usb.ID(vidFlag), usb.ID(pidFlag), cfgFlag, conn.Interface(), conn.AltSetting())

	f := flasher.New(conn, opts...)
	cfg := f.Config()
	fmt.Printf("Transfer size: %d, page size: %d\n", cfg.TransferSize, cfg.PageSize)

	if err := f.EnsureIdle(); err != nil {
		conn.Close()
		return nil, nil, err
	}

	return conn, f, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	outPath := args[0]

	conn, f, err := openDevice(flasherOptions(cmd))
	if err != nil {
		return err
	}
	defer conn.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	total := int(uploadLimitFlag)
	if total == 0 {
		total = -1
	}
	bar, progress := newProgress(total, "Uploading")
	f.SetProgressCallback(progress)

	var n int
	if cmd.Flags().Changed("address") {
		fmt.Printf("Uploading from 0x%08X to %s\n", uint32(addressFlag), outPath)
		n, err = f.UploadFrom(cmd.Context(), uint32(addressFlag), out)
	} else {
		fmt.Printf("Uploading to %s\n", outPath)
		n, err = f.Upload(cmd.Context(), out)
	}
	finishProgress(bar)
	if err != nil {
		return fmt.Errorf("upload failed after %d bytes: %w", n, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Printf("\nUpload complete: %d bytes\n", n)
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	img, err := dfuse.Parse(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	fmt.Printf("Image: %s (%d target(s), %d bytes)\n", args[0], len(img.Targets), img.PayloadSize())
	printWarnings(os.Stdout, img)

	conn, f, err := openDevice(flasherOptions(cmd))
	if err != nil {
		return err
	}
	defer conn.Close()

	bar, progress := newProgress(img.PayloadSize(), "Downloading")
	f.SetProgressCallback(progress)

	err = f.DownloadImage(cmd.Context(), img)
	finishProgress(bar)
	if err != nil {
		return err
	}

	fmt.Println("\nDownload complete!")
	return nil
}

func runDownloadBin(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read binary: %w", err)
	}

	fmt.Printf("Binary: %s (%d bytes) at 0x%08X\n", args[0], len(data), uint32(addressFlag))

	conn, f, err := openDevice(flasherOptions(cmd))
	if err != nil {
		return err
	}
	defer conn.Close()

	bar, progress := newProgress(len(data), "Downloading")
	f.SetProgressCallback(progress)

	err = f.DownloadBinary(cmd.Context(), uint32(addressFlag), data)
	finishProgress(bar)
	if err != nil {
		return err
	}

	fmt.Println("\nDownload complete!")
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	img, err := dfuse.Parse(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	printImage(os.Stdout, img)
	return nil
}

func runPack(cmd *cobra.Command, args []string) error {
	inPath, outPath := args[0], args[1]

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("failed to read binary: %w", err)
	}

	img := dfuse.NewBinaryImage(uint32(addressFlag), data, uint16(vidFlag), uint16(pidFlag), uint16(bcdFlag))

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer out.Close()

	n, err := img.WriteTo(out)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	fmt.Printf("Packed %s (%d bytes at 0x%08X) into %s (%d bytes)\n",
		inPath, len(data), uint32(addressFlag), outPath, n)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	devices, err := detect.ListDevices()
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No DFU interfaces found")
	}
	for _, d := range devices {
		fmt.Println(d)
	}

	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("\nAvailable serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	fmt.Printf("Resetting %s into bootloader...\n", args[0])
	if err := serial.TouchReset(args[0], resetSettleFlag); err != nil {
		return err
	}
	fmt.Println("Done!")
	return nil
}

// printImage writes a human readable summary of a container.
func printImage(w io.Writer, img *dfuse.FirmwareImage) {
	fmt.Fprintf(w, "DfuSe v%d, image size %d, %d target(s)\n", img.Version, img.DeclaredSize, len(img.Targets))
	fmt.Fprintf(w, "Suffix: vendor 0x%04X, product 0x%04X, device 0x%04X, crc 0x%08X\n",
		img.Vendor, img.Product, img.Device, img.CRC)

	for i, t := range img.Targets {
		name := "(unnamed)"
		if t.Named {
			name = fmt.Sprintf("%q", t.Name)
		}
		fmt.Fprintf(w, "Target %d: alt %d, name %s, %d element(s), %d bytes\n",
			i+1, t.AlternateSetting, name, len(t.Elements), t.Size())

		for j, e := range t.Elements {
			fmt.Fprintf(w, "  Element %d: address 0x%08X, size %d\n", j+1, e.Address, len(e.Data))
		}
	}

	printWarnings(w, img)
}

func printWarnings(w io.Writer, img *dfuse.FirmwareImage) {
	for _, warn := range img.Warnings {
		fmt.Fprintf(w, "Warning: %v\n", warn)
	}
}

// go-wcpu
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-wcpu.
//
// go-wcpu is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-wcpu is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-wcpu; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ZaparooProject/go-wcpu"
	"github.com/ZaparooProject/go-wcpu/bus/i2c"
	"github.com/ZaparooProject/go-wcpu/bus/mmio"
	"github.com/ZaparooProject/go-wcpu/bus/uart"
	"github.com/ZaparooProject/go-wcpu/bus/usb"
	"github.com/ZaparooProject/go-wcpu/detection"
	// Import all detectors to register them
	_ "github.com/ZaparooProject/go-wcpu/detection/i2c"
	_ "github.com/ZaparooProject/go-wcpu/detection/pci"
	_ "github.com/ZaparooProject/go-wcpu/detection/usb"
	"github.com/ZaparooProject/go-wcpu/polling"
)

type config struct {
	busType     *string
	devicePath  *string
	fwName      *string
	fwDir       *string
	mailbox     *string
	timeout     *time.Duration
	watch       *time.Duration
	debug       *bool
	statusOnly  *bool
	probeDetect *bool
}

func parseFlags() *config {
	cfg := &config{
		busType: flag.String("bus", "",
			"Bus type: mmio, usb, i2c or uart. Leave empty to infer from -device or auto-detect."),
		devicePath: flag.String("device", "",
			"Device path (PCI address, USB bus:addr, /dev/i2c-N or serial port). Leave empty for auto-detection."),
		fwName:      flag.String("fw", wcpu.DefaultFirmwareName, "Firmware file name relative to the search dirs"),
		fwDir:       flag.String("dir", "", "Extra firmware search directory, searched first"),
		mailbox:     flag.String("mailbox", "", "Send one register mailbox message FUNC:HEX (e.g. 0x01:0a0b)"),
		timeout:     flag.Duration("timeout", 10*time.Second, "Timeout for firmware load and detection"),
		watch:       flag.Duration("watch", 0, "Watch the C2H mailbox for this long after loading"),
		debug:       flag.Bool("debug", false, "Enable debug output"),
		statusOnly:  flag.Bool("status", false, "Only print the firmware control status"),
		probeDetect: flag.Bool("probe", false, "Probe detected devices instead of only listing them"),
	}
	flag.Parse()

	// Enable debug output if --debug flag is set
	if *cfg.debug {
		wcpu.SetDebugEnabled(true)
	}

	return cfg
}

// inferBus guesses the bus type from a device path
func inferBus(path string) string {
	pathLower := strings.ToLower(path)
	switch {
	case strings.Contains(pathLower, "i2c"):
		return "i2c"
	case strings.HasPrefix(pathLower, "/dev/") || strings.HasPrefix(pathLower, "com"):
		return "uart"
	case strings.Count(path, ":") == 2:
		// domain:bus:slot.func
		return "mmio"
	case strings.Count(path, ":") == 1:
		return "usb"
	default:
		return ""
	}
}

// openBus opens the register backend for busType at path
func openBus(busType, path string) (wcpu.Bus, error) {
	switch busType {
	case "mmio":
		b, err := mmio.Open(path, mmio.DefaultBAR)
		if err != nil {
			return nil, fmt.Errorf("failed to open MMIO bus: %w", err)
		}
		return b, nil
	case "usb":
		b, err := usb.Open(0, path)
		if err != nil {
			return nil, fmt.Errorf("failed to open USB bus: %w", err)
		}
		return b, nil
	case "i2c":
		b, err := i2c.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open I2C bus: %w", err)
		}
		return b, nil
	case "uart":
		b, err := uart.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open UART bus: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported bus type: %q", busType)
	}
}

// detectDevice returns the first detected chip
func detectDevice(cfg *config) (detection.DeviceInfo, error) {
	_, _ = fmt.Println("Auto-detecting WCPU devices...")

	opts := detection.DefaultOptions()
	opts.Timeout = *cfg.timeout
	if *cfg.probeDetect {
		opts.Mode = detection.Probe
	}

	devices, err := detection.DetectAll(context.Background(), &opts)
	if err != nil {
		return detection.DeviceInfo{}, fmt.Errorf("detection failed: %w", err)
	}
	for _, d := range devices {
		_, _ = fmt.Printf("  found %s %s on %s %v\n", d.Name, d.VIDPID, d.Path, d.Metadata)
	}
	if *cfg.busType != "" {
		for _, d := range devices {
			if d.Bus == *cfg.busType {
				return d, nil
			}
		}
		return detection.DeviceInfo{}, fmt.Errorf("no %s device detected", *cfg.busType)
	}
	return devices[0], nil
}

// noTransmit stands in for buses that cannot carry packets
type noTransmit struct {
	bus wcpu.BusType
}

func (n noTransmit) Transmit(*wcpu.Buffer, bool) error {
	return fmt.Errorf("%s bus cannot carry firmware packets", n.bus)
}

func connectToDevice(cfg *config) (*wcpu.Device, error) {
	path, busType := *cfg.devicePath, *cfg.busType
	if path == "" {
		info, err := detectDevice(cfg)
		if err != nil {
			return nil, err
		}
		path, busType = info.Path, info.Bus
	} else if busType == "" {
		busType = inferBus(path)
	}
	_, _ = fmt.Printf("Opening %s device: %s\n", busType, path)

	bus, err := openBus(busType, path)
	if err != nil {
		return nil, err
	}

	var tx wcpu.Transmitter = noTransmit{bus: bus.Type()}
	if t, ok := bus.(wcpu.Transmitter); ok {
		tx = t
	}

	dirs := wcpu.DefaultFirmwareDirs
	if *cfg.fwDir != "" {
		dirs = append([]string{*cfg.fwDir}, dirs...)
	}

	logLevel := slog.LevelInfo
	if *cfg.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	device, err := wcpu.New(bus, tx,
		wcpu.WithLogger(logger),
		wcpu.WithFirmwareSource(wcpu.NewDirSource(dirs...)),
		wcpu.WithFirmwareName(*cfg.fwName),
		wcpu.WithProgressCallback(printProgress),
	)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}
	return device, nil
}

func printProgress(p wcpu.Progress) {
	if p.Phase == wcpu.PhaseSections {
		_, _ = fmt.Printf("\r  section %d/%d  %d/%d bytes", p.Section+1, p.SectionCount, p.BytesSent, p.TotalBytes)
		return
	}
	_, _ = fmt.Printf("\n  %s (%s)", p.Phase, p.Elapsed.Round(time.Millisecond))
}

func printStatus(device *wcpu.Device) error {
	val, err := device.Registers().Read8(wcpu.RegWCPUFWCtrl)
	if err != nil {
		return fmt.Errorf("failed to read firmware control: %w", err)
	}
	_, _ = fmt.Printf("FW_CTRL 0x%02X: %s, h2c path ready %t, fwdl path ready %t\n",
		val, wcpu.StatusOf(val), val&wcpu.BitH2CPathReady != 0, val&wcpu.BitFWDLPathReady != 0)
	return nil
}

func loadFirmware(ctx context.Context, device *wcpu.Device) error {
	if err := device.LoadFirmware(); err != nil {
		return fmt.Errorf("failed to request firmware: %w", err)
	}
	image, err := device.WaitFirmwareContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to load firmware: %w", err)
	}
	_, _ = fmt.Printf("Loaded %d byte image\n", len(image))

	if err := device.DownloadFirmware(image); err != nil {
		_, _ = fmt.Println()
		if wcpu.GetErrorType(err) == wcpu.ErrorTypeRejected {
			return fmt.Errorf("chip rejected the image: %w", err)
		}
		return fmt.Errorf("download failed: %w", err)
	}
	_, _ = fmt.Printf("\nWCPU firmware %s running\n", device.FirmwareVersion())
	return nil
}

// parseMailbox parses FUNC:HEX
func parseMailbox(arg string) (uint8, []byte, error) {
	fn, content, found := strings.Cut(arg, ":")
	if !found {
		return 0, nil, errors.New("mailbox message must be FUNC:HEX")
	}
	f, err := strconv.ParseUint(fn, 0, 7)
	if err != nil {
		return 0, nil, fmt.Errorf("bad mailbox function %q: %w", fn, err)
	}
	data, err := hex.DecodeString(content)
	if err != nil {
		return 0, nil, fmt.Errorf("bad mailbox content %q: %w", content, err)
	}
	return uint8(f), data, nil
}

func exchangeMailbox(device *wcpu.Device, arg string) error {
	fn, content, err := parseMailbox(arg)
	if err != nil {
		return err
	}

	device.Lock()
	defer device.Unlock()
	if err := device.WriteMailboxMessage(fn, content); err != nil {
		return fmt.Errorf("mailbox write failed: %w", err)
	}
	msg, err := device.ReadMailbox()
	if err != nil {
		return fmt.Errorf("mailbox read failed: %w", err)
	}
	_, _ = fmt.Printf("C2H reg func 0x%02X: % x\n", msg.Function, msg.Content())
	return nil
}

func watchMailbox(device *wcpu.Device, d time.Duration) error {
	actor, err := polling.NewMailboxActor(device, nil, polling.MailboxCallbacks{
		OnMessage: func(msg *wcpu.MailboxMessage) error {
			_, _ = fmt.Printf("C2H reg func 0x%02X: % x\n", msg.Function, msg.Content())
			return nil
		},
		OnError: func(err error) {
			_, _ = fmt.Fprintf(os.Stderr, "mailbox: %v\n", err)
		},
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Printf("Watching C2H mailbox for %s...\n", d)
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := actor.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	_ = actor.Stop()

	m := actor.GetMetrics()
	_, _ = fmt.Printf("%d polls, %d messages, %d errors\n", m.PollCycles, m.Messages, m.PollErrors)
	return nil
}

func run(cfg *config) error {
	device, err := connectToDevice(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = device.Close() }()

	if *cfg.statusOnly {
		return printStatus(device)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *cfg.timeout)
	defer cancel()
	if err := loadFirmware(ctx, device); err != nil {
		return err
	}

	device.SetRunning(true)
	if *cfg.mailbox != "" {
		if err := exchangeMailbox(device, *cfg.mailbox); err != nil {
			return err
		}
	}
	if *cfg.watch > 0 {
		return watchMailbox(device, *cfg.watch)
	}
	return nil
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

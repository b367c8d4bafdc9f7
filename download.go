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

package wcpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-wcpu/internal/frame"
)

// DownloadPhase names a step of the firmware download
type DownloadPhase string

// Download phases, in order
const (
	PhaseParse    DownloadPhase = "parse"
	PhaseH2CPath  DownloadPhase = "h2c path"
	PhaseHeader   DownloadPhase = "header"
	PhaseSections DownloadPhase = "sections"
	PhaseReady    DownloadPhase = "ready"
	PhaseComplete DownloadPhase = "complete"
)

// Progress reports where a firmware download is
type Progress struct {
	Phase        DownloadPhase
	Section      int
	SectionCount int
	BytesSent    int
	TotalBytes   int
	Elapsed      time.Duration
}

// ProgressCallback is called synchronously from DownloadFirmware
type ProgressCallback func(Progress)

// H2C class and functions of the download header frame
const (
	h2cClassFWDL   = 0x3
	h2cFuncFWHdrDL = 0x0
	downloadOpName = "download firmware"
)

type downloadRun struct {
	start        time.Time
	sectionCount int
	totalBytes   int
	sent         int
}

// DownloadFirmware transfers a firmware image to the WCPU and waits for it
// to report init ready. It blocks for up to several register poll budgets
// and must not be called from an event handler.
//
// On any failure after parsing starts, a diagnostic dump of the firmware
// control register and program counter is logged before the error is
// returned. A failed download is retried by calling DownloadFirmware again
// from the start.
func (d *Device) DownloadFirmware(image []byte) error {
	d.fwReady.Store(false)
	run := &downloadRun{start: time.Now()}

	info, err := ParseFirmware(image)
	if err != nil {
		d.log.Error("parse fw header fail", "error", err)
		d.dumpDownloadFailure()
		return err
	}
	run.sectionCount = info.SectionNum()
	run.totalBytes = info.PayloadLen()

	d.updateVersion(image)
	d.reportProgress(run, PhaseParse, 0)

	if _, err := pollRead8(d.regs, RegWCPUFWCtrl, func(v uint8) bool {
		return v&BitH2CPathReady != 0
	}, d.config.FWDLPoll); err != nil {
		d.log.Error("h2c path not ready", "error", err)
		d.dumpDownloadFailure()
		return d.pollError("h2c path ready", err)
	}
	d.reportProgress(run, PhaseH2CPath, 0)

	if err := d.downloadHeader(image[:info.HeaderLen]); err != nil {
		d.log.Error("download firmware header fail", "error", err)
		d.dumpDownloadFailure()
		return err
	}
	d.reportProgress(run, PhaseHeader, 0)

	for i, sec := range info.Sections {
		if err := d.downloadSection(run, i, sec); err != nil {
			d.log.Error("download firmware section fail", "section", i, "error", err)
			d.dumpDownloadFailure()
			return err
		}
	}

	time.Sleep(d.config.SettleDelay)
	if err := d.checkFirmwareReady(); err != nil {
		d.log.Warn("download firmware fail", "error", err)
		d.dumpDownloadFailure()
		return err
	}
	d.reportProgress(run, PhaseReady, run.sectionCount)

	d.fwReady.Store(true)
	d.log.Info("firmware download complete",
		"sections", run.sectionCount,
		"bytes", run.sent,
		"elapsed", time.Since(run.start))
	d.reportProgress(run, PhaseComplete, run.sectionCount)
	return nil
}

// downloadHeader sends the image header and section table as one framed
// command, then waits for the chip to open the download path.
func (d *Device) downloadHeader(hdr []byte) error {
	buf, err := d.NewH2CBuffer(len(hdr), true)
	if err != nil {
		return NewResourceError(downloadOpName, "header")
	}
	if err := buf.Put(hdr); err != nil {
		buf.Release()
		return NewResourceError(downloadOpName, "header")
	}
	frame.FWHeader(buf.Bytes()).SetPartSize(uint16(d.config.ChunkSize))

	if err := d.setFWDLHeader(buf, len(hdr)); err != nil {
		buf.Release()
		return NewResourceError(downloadOpName, "header")
	}

	hexDump("FWDL HDR: ", buf.Bytes())
	if err := d.tx.Transmit(buf, false); err != nil {
		buf.Release()
		d.log.Error("failed to send h2c", "error", err)
		return NewTransmitError(downloadOpName, "header", err)
	}

	if _, err := pollRead8(d.regs, RegWCPUFWCtrl, func(v uint8) bool {
		return v&BitFWDLPathReady != 0
	}, d.config.FWDLPoll); err != nil {
		d.log.Error("fwdl path not ready", "error", err)
		return d.pollError("fwdl path ready", err)
	}

	if err := d.regs.Write32(RegHaltH2CCtrl, 0); err != nil {
		return d.registerError("halt h2c clear", err)
	}
	if err := d.regs.Write32(RegHaltC2HCtrl, 0); err != nil {
		return d.registerError("halt c2h clear", err)
	}
	return nil
}

// setFWDLHeader prepends the header-download frame header. It carries the
// current sequence number without advancing it and requests no acks.
func (d *Device) setFWDLHeader(buf *Buffer, payloadLen int) error {
	dst, err := buf.Push(frame.H2CHeaderLen)
	if err != nil {
		return err
	}
	hdr := frame.H2CHeader{
		Type:     uint8(FrameTypeCmd),
		Category: uint8(CategoryMAC),
		Class:    h2cClassFWDL,
		Function: h2cFuncFWHdrDL,
		Seq:      d.H2CSeq(),
		TotalLen: uint16(payloadLen + frame.H2CHeaderLen),
	}
	return hdr.Encode(dst)
}

// downloadSection streams one section in chunks of at most ChunkSize bytes
// on the firmware channel.
func (d *Device) downloadSection(run *downloadRun, index int, sec SectionInfo) error {
	stage := fmt.Sprintf("section %d", index)
	data := sec.Data
	debugf("FWDL section %d: addr=0x%08x len=%d redl=%v", index, sec.DownloadAddr, len(data), sec.Redownload)

	for len(data) > 0 {
		pktLen := min(len(data), d.config.ChunkSize)

		buf, err := d.NewH2CBuffer(pktLen, false)
		if err != nil {
			return NewResourceError(downloadOpName, stage)
		}
		if err := buf.Put(data[:pktLen]); err != nil {
			buf.Release()
			return NewResourceError(downloadOpName, stage)
		}

		if err := d.tx.Transmit(buf, true); err != nil {
			buf.Release()
			d.log.Error("failed to send fw packet", "section", index, "error", err)
			return NewTransmitError(downloadOpName, stage, err)
		}

		data = data[pktLen:]
		run.sent += pktLen
		d.reportProgress(run, PhaseSections, index)
	}
	return nil
}

// checkFirmwareReady waits for the chip to report init ready and maps a
// rejection code to its error.
func (d *Device) checkFirmwareReady() error {
	val, err := pollRead8(d.regs, RegWCPUFWCtrl, func(v uint8) bool {
		return StatusOf(v) == FWDLWCPUInitRdy
	}, d.config.FWDLPoll)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrTimeout) {
		return d.registerError("fw ready", err)
	}

	status := StatusOf(val)
	switch status {
	case FWDLChecksumFail:
		return NewRejectedError(downloadOpName, ErrFirmwareChecksum)
	case FWDLSecurityFail:
		return NewRejectedError(downloadOpName, ErrFirmwareSecurity)
	case FWDLCutNotMatch:
		return NewRejectedError(downloadOpName, ErrFirmwareCutMismatch)
	default:
		d.log.Error("fw unexpected status", "status", status.String(), "value", val)
		return NewBusyError(downloadOpName, "fw ready", fmt.Errorf("%w: status %s", ErrTimeout, status))
	}
}

// dumpDownloadFailure logs the firmware control and boot debug registers,
// then samples the WCPU program counter through the debug port.
func (d *Device) dumpDownloadFailure() {
	if ctrl, err := d.regs.Read32(RegWCPUFWCtrl); err == nil {
		d.log.Error("fw ctrl", "value", fmt.Sprintf("0x%08x", ctrl))
	}
	if boot, err := d.regs.Read16(RegBootDbg + 2); err == nil {
		d.log.Error("fw boot dbg", "value", fmt.Sprintf("0x%04x", boot))
	}

	if err := d.regs.Write32(RegDbgCtrl, dbgCtrlPC); err != nil {
		d.log.Warn("failed to select debug port", "error", err)
		return
	}
	if err := WriteMask32(d.regs, RegSysStatus1, MaskSel0xC0, 1); err != nil {
		d.log.Warn("failed to select debug port", "error", err)
		return
	}

	for i := 0; i < d.config.DumpIterations; i++ {
		pc, err := d.regs.Read32(RegDbgPortSel)
		if err != nil {
			d.log.Warn("failed to read wcpu pc", "error", err)
			return
		}
		d.log.Error("wcpu pc", "sample", i, "value", fmt.Sprintf("0x%08x", pc))
		time.Sleep(d.config.DumpDelay)
	}
}

func (d *Device) reportProgress(run *downloadRun, phase DownloadPhase, section int) {
	if d.config.ProgressCallback == nil {
		return
	}
	d.config.ProgressCallback(Progress{
		Phase:        phase,
		Section:      section,
		SectionCount: run.sectionCount,
		BytesSent:    run.sent,
		TotalBytes:   run.totalBytes,
		Elapsed:      time.Since(run.start),
	})
}

// pollError turns a failed readiness poll into a DeviceError.
func (d *Device) pollError(stage string, err error) error {
	if errors.Is(err, ErrTimeout) {
		return NewBusyError(downloadOpName, stage, err)
	}
	return d.registerError(stage, err)
}

func (d *Device) registerError(stage string, err error) error {
	return &DeviceError{
		Op:    downloadOpName,
		Stage: stage,
		Err:   fmt.Errorf("register access: %w", err),
		Type:  ErrorTypeTransmit,
	}
}

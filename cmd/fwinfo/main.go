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
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ZaparooProject/go-wcpu"
	"github.com/marcinbor85/gohex"
)

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [-hex OUT.hex] IMAGE.bin\n", os.Args[0])
	flag.PrintDefaults()
}

// describe prints the header fields and section table of image
func describe(w io.Writer, image []byte) (*wcpu.BinInfo, error) {
	info, err := wcpu.ParseFirmware(image)
	if err != nil {
		return nil, err
	}
	ver, err := wcpu.ParseFirmwareVersion(image)
	if err != nil {
		return nil, err
	}

	_, _ = fmt.Fprintf(w, "Version:     %s\n", ver)
	_, _ = fmt.Fprintf(w, "Built:       %s\n", ver.BuildTime().Format("2006-01-02 15:04"))
	_, _ = fmt.Fprintf(w, "Cmd version: %d\n", ver.CmdVersion)
	_, _ = fmt.Fprintf(w, "Header:      %d bytes\n", info.HeaderLen)
	_, _ = fmt.Fprintf(w, "Sections:    %d (%d bytes)\n", info.SectionNum(), info.PayloadLen())
	for i, sec := range info.Sections {
		redl := ""
		if sec.Redownload {
			redl = " redownload"
		}
		_, _ = fmt.Fprintf(w, "  [%d] addr 0x%08x len %6d%s\n", i, sec.DownloadAddr, sec.Len(), redl)
	}
	return info, nil
}

// exportHex writes every section at its download address as Intel HEX
func exportHex(w io.Writer, info *wcpu.BinInfo) error {
	mem := gohex.NewMemory()
	for i, sec := range info.Sections {
		if err := mem.AddBinary(sec.DownloadAddr, sec.Data); err != nil {
			return fmt.Errorf("section %d at 0x%08x: %w", i, sec.DownloadAddr, err)
		}
	}
	if err := mem.DumpIntelHex(w, 16); err != nil {
		return fmt.Errorf("failed to write Intel HEX: %w", err)
	}
	return nil
}

func run(imagePath, hexPath string) error {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	info, err := describe(os.Stdout, image)
	if err != nil {
		return err
	}
	if hexPath == "" {
		return nil
	}

	out, err := os.Create(hexPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", hexPath, err)
	}
	if err := exportHex(out, info); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", hexPath, err)
	}
	_, _ = fmt.Printf("Wrote %s\n", hexPath)
	return nil
}

func main() {
	hexPath := flag.String("hex", "", "Export sections to this Intel HEX file")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *hexPath); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// maxRecordBytes is the data record size limit recommended by the EDF standard.
const maxRecordBytes = 61440

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown number of data records (at this time).
	hdr.SignalCount = len(hdr.Signals)

	var totalSamples int
	for _, signal := range hdr.Signals {
		totalSamples += signal.SamplesPerRecord
	}
	if totalSamples*2 > maxRecordBytes {
		return nil, fmt.Errorf("data record too large: %d bytes, max is %d bytes", totalSamples*2, maxRecordBytes)
	}

	ew := &Writer{w: w, hdr: &hdr}

	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	_, err := ew.w.Seek(0, io.SeekEnd)
	return err
}

// WriteRecord writes a single data record. signals holds one slice per
// ordinary signal in header order; annotation signals are filled with the
// record's time-keeping TAL followed by the given annotations.
func (ew *Writer) WriteRecord(signals [][]float64, annotations ...Annotation) error {
	dataSignals := 0
	for _, signal := range ew.hdr.Signals {
		if !signal.IsAnnotation() {
			dataSignals++
		}
	}
	if len(signals) != dataSignals {
		return fmt.Errorf("expected %d signals, got %d", dataSignals, len(signals))
	}

	recordStart := float64(ew.dataRecords) * ew.hdr.DataRecordDuration.Seconds()

	writer := bufio.NewWriter(ew.w)

	j := 0
	for _, signal := range ew.hdr.Signals {
		if signal.IsAnnotation() {
			tal := formatTALs(recordStart, annotations)
			capacity := signal.SamplesPerRecord * 2
			if len(tal) > capacity {
				return fmt.Errorf("annotations need %d bytes, record holds %d", len(tal), capacity)
			}
			padded := make([]byte, capacity)
			copy(padded, tal)
			if _, err := writer.Write(padded); err != nil {
				return err
			}
			continue
		}

		samples := signals[j]
		j++
		if len(samples) != signal.SamplesPerRecord {
			return fmt.Errorf("signal %q: expected %d samples, got %d", signal.Label, signal.SamplesPerRecord, len(samples))
		}
		for _, sample := range samples {
			digitalValue := convertPhysicalToDigital(sample, signal.PhysicalMin, signal.PhysicalMax, signal.DigitalMin, signal.DigitalMax)
			if err := binary.Write(writer, binary.LittleEndian, digitalValue); err != nil {
				return err
			}
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// writeHeader writes the EDF header at the start of the underlying writer.
func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	writer := bufio.NewWriter(ew.w)
	ew.hdr.HeaderBytes = 256 + (ew.hdr.SignalCount * 256)

	fixed := []string{
		fmt.Sprintf("%-8s", ew.hdr.Version),
		fmt.Sprintf("%-80s", ew.hdr.PatientID),
		fmt.Sprintf("%-80s", ew.hdr.RecordingID),
		fmt.Sprintf("%-8s", ew.hdr.StartTime.Format("02.01.06")),
		fmt.Sprintf("%-8s", ew.hdr.StartTime.Format("15.04.05")),
		fmt.Sprintf("%-8d", ew.hdr.HeaderBytes),
		fmt.Sprintf("%-44s", ew.hdr.Reserved),
		fmt.Sprintf("%-8d", ew.hdr.DataRecords),
		fmt.Sprintf("%-8s", strconv.FormatFloat(ew.hdr.DataRecordDuration.Seconds(), 'f', -1, 64)),
		fmt.Sprintf("%-4d", ew.hdr.SignalCount),
	}
	for _, s := range fixed {
		if _, err := writer.WriteString(s); err != nil {
			return err
		}
	}

	fields := []func(s Signal) string{
		func(s Signal) string { return fmt.Sprintf("%-16s", s.Label) },
		func(s Signal) string { return fmt.Sprintf("%-80s", s.TransducerType) },
		func(s Signal) string { return fmt.Sprintf("%-8s", s.PhysicalDimension) },
		func(s Signal) string { return formatPhysicalValue(s.PhysicalMin) },
		func(s Signal) string { return formatPhysicalValue(s.PhysicalMax) },
		func(s Signal) string { return fmt.Sprintf("%-8d", s.DigitalMin) },
		func(s Signal) string { return fmt.Sprintf("%-8d", s.DigitalMax) },
		func(s Signal) string { return fmt.Sprintf("%-80s", s.Prefiltering) },
		func(s Signal) string { return fmt.Sprintf("%-8d", s.SamplesPerRecord) },
		func(s Signal) string { return fmt.Sprintf("%-32s", "") },
	}
	for _, field := range fields {
		for _, signal := range ew.hdr.Signals {
			if _, err := writer.WriteString(field(signal)); err != nil {
				return err
			}
		}
	}

	return writer.Flush()
}

// convertPhysicalToDigital converts a physical value to a digital value using the calibration factors.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := math.Round(((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin))
	digital = math.Max(float64(dmin), math.Min(float64(dmax), digital))
	return int16(digital)
}

func formatPhysicalValue(val float64) string {
	// Try with 2 decimal places
	s := fmt.Sprintf("%.2f", val)
	if len(s) > 8 {
		// Fall back to no decimal
		s = fmt.Sprintf("%.0f", val)
	}
	return fmt.Sprintf("%-8s", s)
}

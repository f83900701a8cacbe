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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxReadRecordBytes bounds the data record size accepted from a file header.
const maxReadRecordBytes = 1 << 24

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	// Parse fields based on EDF/EDF+ specifications
	hdr := &Header{}
	hdr.Version = Version(strings.TrimSpace(string(b[0:8])))
	hdr.PatientID = strings.TrimSpace(string(b[8:88]))
	hdr.RecordingID = strings.TrimSpace(string(b[88:168]))
	dateStr := strings.TrimSpace(string(b[168:176]))
	timeStr := strings.TrimSpace(string(b[176:184]))

	startDate, err := time.Parse("02.01.06", dateStr)
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", timeStr)
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(strings.TrimSpace(string(b[184:192]))); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}
	hdr.Reserved = strings.TrimSpace(string(b[192:236]))

	if hdr.DataRecords, err = strconv.Atoi(strings.TrimSpace(string(b[236:244]))); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}

	hdr.DataRecordDuration, err = time.ParseDuration(fmt.Sprintf("%ss", strings.TrimSpace(string(b[244:252]))))
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}

	if hdr.SignalCount, err = strconv.Atoi(strings.TrimSpace(string(b[252:256]))); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount <= 0 {
		return nil, fmt.Errorf("invalid signal count %d", hdr.SignalCount)
	}
	if want := 256 * (hdr.SignalCount + 1); hdr.HeaderBytes != want {
		return nil, fmt.Errorf("header bytes %d do not match %d signals (want %d)", hdr.HeaderBytes, hdr.SignalCount, want)
	}
	if hdr.DataRecords < -1 {
		return nil, fmt.Errorf("invalid number of data records %d", hdr.DataRecords)
	}

	hdr.Signals = make([]Signal, hdr.SignalCount)

	// Signal headers are stored field by field, each field repeated for every signal.
	fields := []struct {
		width int
		set   func(s *Signal, v string)
	}{
		{16, func(s *Signal, v string) { s.Label = v }},
		{80, func(s *Signal, v string) { s.TransducerType = v }},
		{8, func(s *Signal, v string) { s.PhysicalDimension = v }},
		{8, func(s *Signal, v string) { s.PhysicalMin = parseFloat(v) }},
		{8, func(s *Signal, v string) { s.PhysicalMax = parseFloat(v) }},
		{8, func(s *Signal, v string) { s.DigitalMin = parseInt(v) }},
		{8, func(s *Signal, v string) { s.DigitalMax = parseInt(v) }},
		{80, func(s *Signal, v string) { s.Prefiltering = v }},
		{8, func(s *Signal, v string) { s.SamplesPerRecord = parseInt(v) }},
		{32, func(s *Signal, v string) { s.Reserved = v }},
	}
	for _, f := range fields {
		b := make([]byte, f.width)
		for i := 0; i < hdr.SignalCount; i++ {
			if _, err := io.ReadFull(reader, b); err != nil {
				return nil, fmt.Errorf("error reading signal headers: %w", err)
			}
			f.set(&hdr.Signals[i], strings.TrimSpace(string(b)))
		}
	}

	recordBytes := 0
	for i, sig := range hdr.Signals {
		if sig.SamplesPerRecord < 1 || sig.SamplesPerRecord > maxReadRecordBytes/2 {
			return nil, fmt.Errorf("signal %d (%s): invalid samples per record %d", i, sig.Label, sig.SamplesPerRecord)
		}
		recordBytes += sig.SamplesPerRecord * 2
		if recordBytes > maxReadRecordBytes {
			return nil, fmt.Errorf("data record too large: more than %d bytes", maxReadRecordBytes)
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() *Header {
	return er.hdr
}

// ReadAll reads every data record. It returns the physical values of all
// ordinary signals in header order (annotation signals excluded) together
// with the annotations found in the EDF+ annotation signals.
func (er *Reader) ReadAll() ([][]float64, []Annotation, error) {
	recordSize := 0
	for _, sig := range er.hdr.Signals {
		recordSize += sig.SamplesPerRecord * 2
	}

	size, err := er.r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, nil, fmt.Errorf("error seeking to end of file: %w", err)
	}
	if er.hdr.DataRecords > 0 {
		if want := int64(er.hdr.HeaderBytes) + int64(er.hdr.DataRecords)*int64(recordSize); size < want {
			return nil, nil, fmt.Errorf("file is truncated: %d bytes, header declares %d", size, want)
		}
	}
	if _, err := er.r.Seek(int64(er.hdr.HeaderBytes), io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("error seeking to data records: %w", err)
	}

	var dataSignals []int
	for i, sig := range er.hdr.Signals {
		if !sig.IsAnnotation() {
			dataSignals = append(dataSignals, i)
		}
	}
	signals := make([][]float64, len(dataSignals))
	if er.hdr.DataRecords > 0 {
		for j, i := range dataSignals {
			signals[j] = make([]float64, 0, er.hdr.DataRecords*er.hdr.Signals[i].SamplesPerRecord)
		}
	}

	reader := bufio.NewReader(er.r)
	buf := make([]byte, recordSize)
	var annotations []Annotation
	for rec := 0; er.hdr.DataRecords < 0 || rec < er.hdr.DataRecords; rec++ {
		if _, err := io.ReadFull(reader, buf); err != nil {
			if er.hdr.DataRecords < 0 && errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("error reading data record %d: %w", rec, err)
		}

		offset := 0
		j := 0
		for _, sig := range er.hdr.Signals {
			n := sig.SamplesPerRecord * 2
			chunk := buf[offset : offset+n]
			offset += n

			if sig.IsAnnotation() {
				anns, err := parseTALs(chunk)
				if err != nil {
					return nil, nil, fmt.Errorf("error parsing annotations in record %d: %w", rec, err)
				}
				annotations = append(annotations, anns...)
				continue
			}

			for k := 0; k < sig.SamplesPerRecord; k++ {
				digital := int16(binary.LittleEndian.Uint16(chunk[k*2:]))
				signals[j] = append(signals[j], convertDigitalToPhysical(digital, sig.DigitalMin, sig.DigitalMax, sig.PhysicalMin, sig.PhysicalMax))
			}
			j++
		}
	}

	return signals, annotations, nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

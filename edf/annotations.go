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
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// TAL (time-stamped annotation list) separators defined by EDF+.
const (
	talDuration  = 0x15
	talSeparator = 0x14
	talEnd       = 0x00
)

// parseTALs decodes the annotations held in one data record of an EDF+
// annotation signal. Time-keeping TALs (no annotation text) are dropped.
func parseTALs(b []byte) ([]Annotation, error) {
	var out []Annotation
	for _, tal := range bytes.Split(b, []byte{talEnd}) {
		if len(tal) == 0 {
			continue
		}
		parts := bytes.Split(tal, []byte{talSeparator})
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed TAL %q", tal)
		}

		timing := string(parts[0])
		durStr := ""
		if i := strings.IndexByte(timing, talDuration); i >= 0 {
			timing, durStr = timing[:i], timing[i+1:]
		}
		onset, err := strconv.ParseFloat(timing, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TAL onset %q: %w", timing, err)
		}
		var duration float64
		if durStr != "" {
			if duration, err = strconv.ParseFloat(durStr, 64); err != nil {
				return nil, fmt.Errorf("invalid TAL duration %q: %w", durStr, err)
			}
		}

		for _, text := range parts[1:] {
			if len(text) == 0 {
				continue
			}
			out = append(out, Annotation{Onset: onset, Duration: duration, Text: string(text)})
		}
	}
	return out, nil
}

// formatTALs encodes the time-keeping TAL for a record starting at
// recordStart seconds followed by one TAL per annotation.
func formatTALs(recordStart float64, annotations []Annotation) []byte {
	var buf bytes.Buffer
	buf.WriteString(formatOnset(recordStart))
	buf.WriteByte(talSeparator)
	buf.WriteByte(talSeparator)
	buf.WriteByte(talEnd)
	for _, a := range annotations {
		buf.WriteString(formatOnset(a.Onset))
		if a.Duration > 0 {
			buf.WriteByte(talDuration)
			buf.WriteString(strconv.FormatFloat(a.Duration, 'f', -1, 64))
		}
		buf.WriteByte(talSeparator)
		buf.WriteString(a.Text)
		buf.WriteByte(talSeparator)
		buf.WriteByte(talEnd)
	}
	return buf.Bytes()
}

func formatOnset(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v >= 0 {
		return "+" + s
	}
	return s
}

// AnnotationBytes returns the number of bytes needed to store the given
// annotations in a single data record starting at recordStart.
func AnnotationBytes(recordStart float64, annotations []Annotation) int {
	return len(formatTALs(recordStart, annotations))
}

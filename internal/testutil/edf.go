package testutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SetSamplesPerRecord overwrites the samples-per-record header field of one
// signal of the EDF file at path.
func SetSamplesPerRecord(path string, signal, value int) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	count := make([]byte, 4)
	if _, err := f.ReadAt(count, 252); err != nil {
		return err
	}
	signals, err := strconv.Atoi(strings.TrimSpace(string(count)))
	if err != nil {
		return err
	}
	if signal < 0 || signal >= signals {
		return fmt.Errorf("signal %d out of range [0, %d)", signal, signals)
	}

	// Label, transducer, dimension, physical and digital ranges and
	// prefiltering precede the field, each repeated per signal.
	offset := 256 + signals*(16+80+8+8+8+8+8+80) + signal*8
	_, err = f.WriteAt([]byte(fmt.Sprintf("%-8d", value)), int64(offset))
	return err
}

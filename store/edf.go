package store

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Noofbiz/eegprep/edf"
	"github.com/Noofbiz/eegprep/recording"
)

// EncodeEDF writes r as a continuous EDF+ file with one-second data
// records. Samples are stored in microvolts; the last record is zero padded.
// Every annotation goes into the record that contains its onset.
func EncodeEDF(w io.WriteSeeker, r *recording.Recording) error {
	perRecord := int(math.Round(r.SampleRate))
	if perRecord <= 0 || math.Abs(float64(perRecord)-r.SampleRate) > 1e-9 {
		return fmt.Errorf("sample rate %v Hz does not fit one-second records", r.SampleRate)
	}
	total := r.Samples()
	records := (total + perRecord - 1) / perRecord
	if records == 0 {
		records = 1
	}

	byRecord := make([][]edf.Annotation, records)
	for _, a := range r.Annotations {
		i := int(math.Floor(a.Onset))
		i = max(0, min(records-1, i))
		byRecord[i] = append(byRecord[i], edf.Annotation{Onset: a.Onset, Duration: a.Duration, Text: a.Description})
	}
	annBytes := 0
	for i, anns := range byRecord {
		annBytes = max(annBytes, edf.AnnotationBytes(float64(i), anns))
	}

	pmin, pmax := physicalRange(r.Data)
	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          r.Subject,
		RecordingID:        "Startdate X",
		StartTime:          time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		Reserved:           edf.ReservedContinuous,
		DataRecordDuration: time.Second,
	}
	for _, name := range r.Names {
		hdr.Signals = append(hdr.Signals, edf.Signal{
			Label:             name,
			PhysicalDimension: "uV",
			PhysicalMin:       pmin,
			PhysicalMax:       pmax,
			DigitalMin:        math.MinInt16,
			DigitalMax:        math.MaxInt16,
			SamplesPerRecord:  perRecord,
		})
	}
	hdr.Signals = append(hdr.Signals, edf.Signal{
		Label:            edf.AnnotationsLabel,
		PhysicalMin:      -1,
		PhysicalMax:      1,
		DigitalMin:       math.MinInt16,
		DigitalMax:       math.MaxInt16,
		SamplesPerRecord: (annBytes + 1) / 2,
	})

	ew, err := edf.Create(w, hdr)
	if err != nil {
		return err
	}

	chunk := make([][]float64, len(r.Data))
	for c := range chunk {
		chunk[c] = make([]float64, perRecord)
	}
	for i := 0; i < records; i++ {
		start := i * perRecord
		for c, row := range r.Data {
			clear(chunk[c])
			end := min(total, start+perRecord)
			for k := start; k < end; k++ {
				chunk[c][k-start] = row[k] * 1e6
			}
		}
		if err := ew.WriteRecord(chunk, byRecord[i]...); err != nil {
			return fmt.Errorf("error writing record %d: %w", i, err)
		}
	}
	return ew.Close()
}

// physicalRange returns integer microvolt bounds enclosing every sample.
func physicalRange(data [][]float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range data {
		for _, v := range row {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return -1, 1
	}
	lo, hi = math.Floor(lo*1e6), math.Ceil(hi*1e6)
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	return lo, hi
}

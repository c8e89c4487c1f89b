// Package signalfile reads and writes filtered recordings as CSV.
//
// A file holds one sample per row, either "time,value" or just "value".
// An optional header row is skipped. A "# sample_rate=<hz>" comment sets
// the rate; without it the rate is derived from the time column. Value-only
// files need the comment, since times are then generated as i/rate.
package signalfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/spikecurator/internal/domain/model"
)

const sampleRateKey = "sample_rate"

// Load opens path and parses it with Read.
func Load(ctx context.Context, path string) (model.Recording, error) {
	if err := ctx.Err(); err != nil {
		return model.Recording{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return model.Recording{}, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	defer func() { _ = f.Close() }()

	rec, err := Read(f)
	if err != nil {
		return model.Recording{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Read parses a recording from r.
func Read(r io.Reader) (model.Recording, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var (
		rec        model.Recording
		columns    int
		headerSeen bool
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Recording{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		line, _ := reader.FieldPos(0)

		first := strings.TrimSpace(row[0])
		if strings.HasPrefix(first, "#") {
			rate, ok, err := parseComment(strings.Join(row, ","))
			if err != nil {
				return model.Recording{}, fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
			}
			if ok {
				rec.SampleRate = rate
			}
			continue
		}
		if first == "" && len(row) == 1 {
			continue
		}

		if columns == 0 {
			if len(row) > 2 {
				return model.Recording{}, fmt.Errorf("%w: line %d: want 1 or 2 columns, got %d", ErrMalformed, line, len(row))
			}
			if _, err := strconv.ParseFloat(first, 64); err != nil && !headerSeen {
				headerSeen = true
				continue
			}
			columns = len(row)
		}
		if len(row) != columns {
			return model.Recording{}, fmt.Errorf("%w: line %d: want %d columns, got %d", ErrMalformed, line, columns, len(row))
		}

		vals := make([]float64, columns)
		for i, field := range row {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return model.Recording{}, fmt.Errorf("%w: line %d column %d: %w", ErrMalformed, line, i+1, err)
			}
			vals[i] = v
		}
		if columns == 2 {
			rec.SampleTimes = append(rec.SampleTimes, vals[0])
		}
		rec.Samples = append(rec.Samples, vals[columns-1])
	}

	if len(rec.Samples) == 0 {
		return model.Recording{}, fmt.Errorf("%w: no samples", ErrMalformed)
	}

	switch {
	case columns == 1 && rec.SampleRate <= 0:
		return model.Recording{}, fmt.Errorf("%w: value-only file needs a %q comment", ErrMalformed, sampleRateKey)
	case columns == 1:
		rec.SampleTimes = make([]float64, len(rec.Samples))
		for i := range rec.SampleTimes {
			rec.SampleTimes[i] = float64(i) / rec.SampleRate
		}
	case rec.SampleRate <= 0:
		rate, err := deriveRate(rec.SampleTimes)
		if err != nil {
			return model.Recording{}, err
		}
		rec.SampleRate = rate
	}

	if err := rec.Validate(); err != nil {
		return model.Recording{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return rec, nil
}

// parseComment extracts the sample rate from "# sample_rate=<hz>". Other
// comments are ignored.
func parseComment(text string) (float64, bool, error) {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "#"))
	key, value, found := strings.Cut(body, "=")
	if !found || strings.TrimSpace(key) != sampleRateKey {
		return 0, false, nil
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false, fmt.Errorf("sample rate: %w", err)
	}
	if rate <= 0 {
		return 0, false, fmt.Errorf("sample rate must be positive, got %v", rate)
	}
	return rate, true, nil
}

// deriveRate returns the mean sampling rate over the time column.
func deriveRate(times []float64) (float64, error) {
	if len(times) < 2 {
		return 0, fmt.Errorf("%w: need two samples or a %q comment to know the sample rate", ErrMalformed, sampleRateKey)
	}
	span := times[len(times)-1] - times[0]
	if span <= 0 {
		return 0, fmt.Errorf("%w: sample times not increasing", ErrMalformed)
	}
	return float64(len(times)-1) / span, nil
}

// Write encodes rec as a "time,value" CSV with a sample rate comment.
func Write(w io.Writer, rec model.Recording) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "# %s=%s\n", sampleRateKey, strconv.FormatFloat(rec.SampleRate, 'g', -1, 64)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "value"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, v := range rec.Samples {
		row := []string{
			strconv.FormatFloat(rec.SampleTimes[i], 'g', -1, 64),
			strconv.FormatFloat(v, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes rec to path with Write.
func Save(path string, rec model.Recording) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return Write(f, rec)
}

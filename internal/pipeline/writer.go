package pipeline

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
)

// TimestampLayout formats the run start time in output file names.
const TimestampLayout = "20060102_150405"

// OutputPath derives the results file name for an input file:
// <input without extension>_results_<YYYYMMDD_HHMMSS><extension>.
// Inputs without an extension get ".csv".
func OutputPath(inputPath string, start time.Time) string {
	ext := filepath.Ext(inputPath)
	stem := strings.TrimSuffix(inputPath, ext)
	if ext == "" {
		ext = ".csv"
	}
	return stem + "_results_" + start.Format(TimestampLayout) + ext
}

// WriteResults writes header and rows to OutputPath(inputPath, start) and
// returns that path. The file appears only if every row was written.
func WriteResults(inputPath string, start time.Time, header Row, rows []Row, opts WriteOptions) (string, error) {
	outPath := OutputPath(inputPath, start)

	if err := writeAtomic(outPath, header, rows, opts); err != nil {
		return "", &Error{Kind: KindOutput, Path: inputPath, Err: err}
	}
	return outPath, nil
}

func writeAtomic(outPath string, header Row, rows []Row, opts WriteOptions) (err error) {
	enc, err := writeEncoding(opts.Encoding)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "writer: create output")
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	ew := encoding.ReplaceUnsupported(enc.NewEncoder()).Writer(tmp)
	w := csv.NewWriter(ew)
	if opts.Delimiter != 0 {
		w.Comma = opts.Delimiter
	}

	if err = w.Write(header); err != nil {
		return eris.Wrap(err, "writer: write header")
	}
	for _, row := range rows {
		if err = w.Write(row); err != nil {
			return eris.Wrap(err, "writer: write row")
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return eris.Wrap(err, "writer: flush output")
	}
	if c, ok := ew.(io.Closer); ok {
		if err = c.Close(); err != nil {
			return eris.Wrap(err, "writer: flush encoder")
		}
	}

	if err = tmp.Close(); err != nil {
		return eris.Wrap(err, "writer: close output")
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return eris.Wrap(err, "writer: set output mode")
	}
	if err = os.Rename(tmp.Name(), outPath); err != nil {
		return eris.Wrap(err, "writer: move output into place")
	}
	return nil
}

package hmax

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Record describes where a prototype was sampled from.
type Record struct {
	Layer    string // S2, S2b/<rf> or S3
	Index    int    // index of the prototype in its layer
	Image    string // corpus name of the image
	Scale    int    // scale of the C stack
	Row, Col int    // top left corner of the patch
	Attempts int    // samples drawn, including those rejected as all zero
}

// Statistics collects the provenance of every prototype of a build.
type Statistics struct {
	Records []Record
}

func (s *Statistics) add(rs ...Record) { s.Records = append(s.Records, rs...) }

// WriteCSV writes the records as CSV with a header line.
func (s *Statistics) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"layer", "index", "image", "scale", "row", "col", "attempts"}); err != nil {
		return errors.WithStack(err)
	}
	records := make([][]string, 0, len(s.Records))
	for _, r := range s.Records {
		records = append(records, []string{
			r.Layer,
			strconv.Itoa(r.Index),
			r.Image,
			strconv.Itoa(r.Scale),
			strconv.Itoa(r.Row),
			strconv.Itoa(r.Col),
			strconv.Itoa(r.Attempts),
		})
	}
	// WriteAll flushes
	return errors.WithStack(cw.WriteAll(records))
}

// Dump writes the records into a CSV file.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	return s.WriteCSV(f)
}

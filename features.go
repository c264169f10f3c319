package hmax

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// FeatureVector is the output of the pyramid for one image.
type FeatureVector struct {
	S2b [][]float64 // global max of every S2b prototype, grouped by S2b scale
	S3  []float64   // global max of every S3 prototype
}

// Len returns the number of values in the vector.
func (fv FeatureVector) Len() int {
	n := len(fv.S3)
	for _, s := range fv.S2b {
		n += len(s)
	}
	return n
}

// Flat returns the values of the vector: the S2b values, scale by scale, followed by the S3 values.
func (fv FeatureVector) Flat() []float64 {
	retVal := make([]float64, 0, fv.Len())
	for _, s := range fv.S2b {
		retVal = append(retVal, s...)
	}
	return append(retVal, fv.S3...)
}

// WriteTo writes the flattened vector as text, one value per line.
func (fv FeatureVector) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	buf := make([]byte, 0, 32)
	for _, v := range fv.Flat() {
		buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
		buf = append(buf, '\n')
		m, err := bw.Write(buf)
		n += int64(m)
		if err != nil {
			return n, errors.WithStack(err)
		}
	}
	return n, errors.WithStack(bw.Flush())
}

// ReadFeatures reads a vector written by WriteTo. Blank lines are skipped.
func ReadFeatures(r io.Reader) ([]float64, error) {
	var retVal []float64
	s := bufio.NewScanner(r)
	var line int
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		retVal = append(retVal, v)
	}
	return retVal, errors.WithStack(s.Err())
}

package layer

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Valid 2D correlation.
//
// All correlation routines in this package share one alignment contract: for an
// image of size (rows, cols) and a filter of size (fr, fc), the output has size
// (rows-fr+1, cols-fc+1) and
//
//	out[y, x] = Σ_i Σ_j f[i, j] * img[y+i, x+j]
//
// i.e. out[y, x] is the response of the filter placed with its top left corner at
// (y, x). For odd filters this is the response centred on (y+fr/2, x+fc/2).

// ValidSize returns the size of a valid correlation output.
func ValidSize(rows, cols, fr, fc int) (int, int) { return rows - fr + 1, cols - fc + 1 }

// CorrelateDirect computes the valid correlation of img with f in the spatial domain.
func CorrelateDirect(img []float64, rows, cols int, f []float64, fr, fc int) []float64 {
	or, oc := ValidSize(rows, cols, fr, fc)
	if or <= 0 || oc <= 0 {
		return nil
	}
	retVal := make([]float64, or*oc)
	for i := 0; i < fr; i++ {
		for j := 0; j < fc; j++ {
			w := f[i*fc+j]
			if w == 0 {
				continue
			}
			for y := 0; y < or; y++ {
				src := img[(y+i)*cols+j : (y+i)*cols+j+oc]
				floats.AddScaled(retVal[y*oc:(y+1)*oc], w, src)
			}
		}
	}
	return retVal
}

// Spectrum is the 2D discrete Fourier transform of a real image. Only the
// non-redundant half of each row spectrum is kept, so the coefficients are laid
// out as rows × (cols/2+1).
//
// A Spectrum is read only once built and may be shared between goroutines. The
// FFT plans are not shared: every call creates its own.
type Spectrum struct {
	rows, cols, half int
	coeff            []complex128
}

// Transform computes the spectrum of a rows×cols image.
func Transform(img []float64, rows, cols int) *Spectrum {
	s := &Spectrum{rows: rows, cols: cols, half: cols/2 + 1}
	s.coeff = forward2(img, rows, cols)
	return s
}

// CorrelateValid correlates the transformed image with the fr×fc filter f and
// returns the valid region. The result follows the same alignment as CorrelateDirect.
//
// The product of spectra gives the circular convolution of the image with the
// flipped filter. Its entry (y+fr-1, x+fc-1) equals out[y, x] and never wraps.
func (s *Spectrum) CorrelateValid(f []float64, fr, fc int) []float64 {
	or, oc := ValidSize(s.rows, s.cols, fr, fc)
	if or <= 0 || oc <= 0 {
		return nil
	}

	// flipped filter, zero padded to the image size
	padded := make([]float64, s.rows*s.cols)
	for i := 0; i < fr; i++ {
		for j := 0; j < fc; j++ {
			padded[(fr-1-i)*s.cols+(fc-1-j)] = f[i*fc+j]
		}
	}
	fc2 := forward2(padded, s.rows, s.cols)
	for i := range fc2 {
		fc2[i] *= s.coeff[i]
	}
	full := inverse2(fc2, s.rows, s.cols)

	retVal := make([]float64, or*oc)
	for y := 0; y < or; y++ {
		copy(retVal[y*oc:(y+1)*oc], full[(y+fr-1)*s.cols+fc-1:])
	}
	return retVal
}

// Correlate is a convenience wrapper that transforms img and correlates it with f.
func Correlate(img []float64, rows, cols int, f []float64, fr, fc int) []float64 {
	return Transform(img, rows, cols).CorrelateValid(f, fr, fc)
}

// forward2 computes the half spectrum of a real rows×cols array.
func forward2(src []float64, rows, cols int) []complex128 {
	half := cols/2 + 1
	rfft := fourier.NewFFT(cols)
	cfft := fourier.NewCmplxFFT(rows)

	retVal := make([]complex128, rows*half)
	for y := 0; y < rows; y++ {
		rfft.Coefficients(retVal[y*half:(y+1)*half], src[y*cols:(y+1)*cols])
	}
	col := make([]complex128, rows)
	for x := 0; x < half; x++ {
		for y := 0; y < rows; y++ {
			col[y] = retVal[y*half+x]
		}
		cfft.Coefficients(col, col)
		for y := 0; y < rows; y++ {
			retVal[y*half+x] = col[y]
		}
	}
	return retVal
}

// inverse2 undoes forward2, including the normalization that gonum leaves out.
func inverse2(coeff []complex128, rows, cols int) []float64 {
	half := cols/2 + 1
	rfft := fourier.NewFFT(cols)
	cfft := fourier.NewCmplxFFT(rows)

	col := make([]complex128, rows)
	for x := 0; x < half; x++ {
		for y := 0; y < rows; y++ {
			col[y] = coeff[y*half+x]
		}
		cfft.Sequence(col, col)
		for y := 0; y < rows; y++ {
			coeff[y*half+x] = col[y]
		}
	}
	retVal := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		rfft.Sequence(retVal[y*cols:(y+1)*cols], coeff[y*half:(y+1)*half])
	}
	floats.Scale(1/float64(rows*cols), retVal)
	return retVal
}

// BoxSum returns the valid sum of every fr×fc window of img, computed from a
// summed-area table. The alignment matches CorrelateDirect with an all-ones filter.
func BoxSum(img []float64, rows, cols, fr, fc int) []float64 {
	or, oc := ValidSize(rows, cols, fr, fc)
	if or <= 0 || oc <= 0 {
		return nil
	}
	// sat has a zero row and column in front
	w := cols + 1
	sat := make([]float64, (rows+1)*w)
	for y := 0; y < rows; y++ {
		var run float64
		for x := 0; x < cols; x++ {
			run += img[y*cols+x]
			sat[(y+1)*w+x+1] = sat[y*w+x+1] + run
		}
	}
	retVal := make([]float64, or*oc)
	for y := 0; y < or; y++ {
		for x := 0; x < oc; x++ {
			retVal[y*oc+x] = sat[(y+fr)*w+x+fc] - sat[y*w+x+fc] - sat[(y+fr)*w+x] + sat[y*w+x]
		}
	}
	return retVal
}

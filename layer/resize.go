package layer

import (
	"math"

	"github.com/anthonynsimon/bild/transform"
)

// Bicubic is the resampling kernel used when pooling across scales.
var Bicubic = transform.CatmullRom

// Resize resamples a rows×cols map to newRows×newCols with the given filter.
//
// The sampling grid is the same as bild's transform.Resize: pixel centres are mapped onto
// each other and the kernel is widened when shrinking. Unlike bild, values are neither
// quantized nor clamped.
func Resize(src []float64, rows, cols, newRows, newCols int, filter transform.ResampleFilter) []float64 {
	if rows == newRows && cols == newCols {
		retVal := make([]float64, len(src))
		copy(retVal, src)
		return retVal
	}
	tmp := make([]float64, rows*newCols)
	for y := 0; y < rows; y++ {
		resample1D(tmp[y*newCols:(y+1)*newCols], 1, src[y*cols:(y+1)*cols], 1, filter)
	}
	retVal := make([]float64, newRows*newCols)
	for x := 0; x < newCols; x++ {
		resample1D(retVal[x:], newCols, tmp[x:], newCols, filter)
	}
	return retVal
}

// resample1D resamples a strided line. The lengths of the lines are derived from the
// lengths of the slices and their strides.
func resample1D(dst []float64, dstStride int, src []float64, srcStride int, filter transform.ResampleFilter) {
	srcLen := (len(src) + srcStride - 1) / srcStride
	dstLen := (len(dst) + dstStride - 1) / dstStride

	delta := float64(srcLen) / float64(dstLen)
	scale := math.Max(delta, 1.0)
	radius := math.Ceil(scale * filter.Support)

	for x := 0; x < dstLen; x++ {
		ix := (float64(x)+0.5)*delta - 0.5
		start, end := int(ix-radius+0.5), int(ix+radius)
		if start < 0 {
			start = 0
		}
		if end >= srcLen {
			end = srcLen - 1
		}

		var acc, sum float64
		for k := start; k <= end; k++ {
			w := filter.Fn((float64(k) - ix) / scale)
			if w == 0 {
				continue
			}
			acc += src[k*srcStride] * w
			sum += w
		}
		if sum != 0 {
			acc /= sum
		}
		dst[x*dstStride] = acc
	}
}

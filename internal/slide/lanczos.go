package slide

import "math"

// lanczos3 resamples an RGBA buffer from (srcW, srcH) to (dstW, dstH)
// using a separable Lanczos-3 kernel. No example or ecosystem Go
// library exposes a standalone Lanczos resampler over raw pixel
// buffers, so this is hand-written.
func lanczos3(src []byte, srcW, srcH, dstW, dstH int) []byte {
	if srcW == dstW && srcH == dstH {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}

	// Resample horizontally first into an intermediate buffer, then
	// vertically, which is the standard separable-kernel trick and
	// keeps the kernel one-dimensional.
	tmp := resampleAxis(src, srcW, srcH, dstW, true)
	out := resampleAxis(tmp, dstW, srcH, dstH, false)
	return out
}

const lanczosA = 3.0

func lanczosKernel(x float64) float64 {
	if x == 0 {
		return 1
	}
	if x <= -lanczosA || x >= lanczosA {
		return 0
	}
	piX := math.Pi * x
	return lanczosA * math.Sin(piX) * math.Sin(piX/lanczosA) / (piX * piX)
}

// resampleAxis resamples along the horizontal axis when horizontal is
// true (srcW -> dstDim, height srcH unchanged), or along the vertical
// axis otherwise (srcH -> dstDim, width srcW unchanged).
func resampleAxis(src []byte, srcW, srcH, dstDim int, horizontal bool) []byte {
	var outW, outH int
	if horizontal {
		outW, outH = dstDim, srcH
	} else {
		outW, outH = srcW, dstDim
	}
	out := make([]byte, outW*outH*4)

	srcDim := srcW
	if !horizontal {
		srcDim = srcH
	}
	scale := float64(srcDim) / float64(dstDim)
	// When downsampling, widen the kernel support proportionally so
	// every source sample contributes, avoiding aliasing.
	filterScale := math.Max(scale, 1.0)
	support := lanczosA * filterScale

	for d := 0; d < dstDim; d++ {
		center := (float64(d)+0.5)*scale - 0.5
		lo := int(math.Floor(center - support))
		hi := int(math.Ceil(center + support))
		if lo < 0 {
			lo = 0
		}
		if hi > srcDim-1 {
			hi = srcDim - 1
		}

		weights := make([]float64, hi-lo+1)
		var wsum float64
		for s := lo; s <= hi; s++ {
			w := lanczosKernel((float64(s) - center) / filterScale)
			weights[s-lo] = w
			wsum += w
		}
		if wsum == 0 {
			wsum = 1
		}

		if horizontal {
			for y := 0; y < outH; y++ {
				var r, g, b, a float64
				for s := lo; s <= hi; s++ {
					off := (y*srcW + s) * 4
					w := weights[s-lo]
					r += float64(src[off]) * w
					g += float64(src[off+1]) * w
					b += float64(src[off+2]) * w
					a += float64(src[off+3]) * w
				}
				off := (y*outW + d) * 4
				out[off] = clampByte(r / wsum)
				out[off+1] = clampByte(g / wsum)
				out[off+2] = clampByte(b / wsum)
				out[off+3] = clampByte(a / wsum)
			}
		} else {
			for x := 0; x < outW; x++ {
				var r, g, b, a float64
				for s := lo; s <= hi; s++ {
					off := (s*srcW + x) * 4
					w := weights[s-lo]
					r += float64(src[off]) * w
					g += float64(src[off+1]) * w
					b += float64(src[off+2]) * w
					a += float64(src[off+3]) * w
				}
				off := (d*outW + x) * 4
				out[off] = clampByte(r / wsum)
				out[off+1] = clampByte(g / wsum)
				out[off+2] = clampByte(b / wsum)
				out[off+3] = clampByte(a / wsum)
			}
		}
	}
	return out
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v + 0.5)
}

// conv.go - 2D-Faltungen (NCHW, PyTorch-Gewichtslayout)
//
// Dieses Modul enthaelt:
// - Conv2d: Faltung ueber im2col + GEMM
// - ConvTranspose2d: Transponierte Faltung ueber GEMM + col2im
//
// Die Batch-Elemente werden parallel ueber eine errgroup verarbeitet,
// begrenzt durch NumThreads.
package ml

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Conv2d faltet x [B, C, H, W] mit w [O, C, KH, KW] und addiert bias [O] (optional).
func Conv2d(x, w, bias *Array, stride, pad int) *Array {
	if x.NDim() != 4 || w.NDim() != 4 || x.shape[1] != w.shape[1] {
		panic(fmt.Sprintf("ml: conv2d input %v weight %v", x.shape, w.shape))
	}

	b, c, h, wd := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	o, kh, kw := w.shape[0], w.shape[2], w.shape[3]
	oh := (h+2*pad-kh)/stride + 1
	ow := (wd+2*pad-kw)/stride + 1
	if oh <= 0 || ow <= 0 {
		panic(fmt.Sprintf("ml: conv2d output would be empty for input %v kernel %dx%d", x.shape, kh, kw))
	}

	out := Zeros(b, o, oh, ow)
	k := c * kh * kw
	weights := general(w.data, o, k)

	var g errgroup.Group
	g.SetLimit(NumThreads())
	for n := range b {
		g.Go(func() error {
			src := x.data[n*c*h*wd : (n+1)*c*h*wd]
			cols := make([]float32, k*oh*ow)
			for ci := range c {
				for ki := range kh {
					for kj := range kw {
						row := (ci*kh+ki)*kw + kj
						for y := range oh {
							iy := y*stride - pad + ki
							for xx := range ow {
								ix := xx*stride - pad + kj
								if iy >= 0 && iy < h && ix >= 0 && ix < wd {
									cols[row*oh*ow+y*ow+xx] = src[(ci*h+iy)*wd+ix]
								}
							}
						}
					}
				}
			}

			dst := out.data[n*o*oh*ow : (n+1)*o*oh*ow]
			blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, weights, general(cols, k, oh*ow), 0, general(dst, o, oh*ow))
			if bias != nil {
				for oi := range o {
					for j := range oh * ow {
						dst[oi*oh*ow+j] += bias.data[oi]
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ConvTranspose2d ist die transponierte Faltung von x [B, C, H, W] mit w [C, O, KH, KW].
// Die Ausgabe hat die Form [B, O, (H-1)*stride-2*pad+KH, (W-1)*stride-2*pad+KW].
func ConvTranspose2d(x, w, bias *Array, stride, pad int) *Array {
	if x.NDim() != 4 || w.NDim() != 4 || x.shape[1] != w.shape[0] {
		panic(fmt.Sprintf("ml: conv_transpose2d input %v weight %v", x.shape, w.shape))
	}

	b, c, h, wd := x.shape[0], x.shape[1], x.shape[2], x.shape[3]
	o, kh, kw := w.shape[1], w.shape[2], w.shape[3]
	oh := (h-1)*stride - 2*pad + kh
	ow := (wd-1)*stride - 2*pad + kw
	if oh <= 0 || ow <= 0 {
		panic(fmt.Sprintf("ml: conv_transpose2d output would be empty for input %v kernel %dx%d", x.shape, kh, kw))
	}

	out := Zeros(b, o, oh, ow)
	k := o * kh * kw
	weights := general(w.data, c, k)

	var g errgroup.Group
	g.SetLimit(NumThreads())
	for n := range b {
		g.Go(func() error {
			src := x.data[n*c*h*wd : (n+1)*c*h*wd]
			cols := make([]float32, k*h*wd)
			blas32.Gemm(blas.Trans, blas.NoTrans, 1, weights, general(src, c, h*wd), 0, general(cols, k, h*wd))

			dst := out.data[n*o*oh*ow : (n+1)*o*oh*ow]
			for oi := range o {
				for ki := range kh {
					for kj := range kw {
						row := (oi*kh+ki)*kw + kj
						for y := range h {
							oy := y*stride - pad + ki
							if oy < 0 || oy >= oh {
								continue
							}
							for xx := range wd {
								ox := xx*stride - pad + kj
								if ox >= 0 && ox < ow {
									dst[(oi*oh+oy)*ow+ox] += cols[row*h*wd+y*wd+xx]
								}
							}
						}
					}
				}
				if bias != nil {
					for j := range oh * ow {
						dst[oi*oh*ow+j] += bias.data[oi]
					}
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

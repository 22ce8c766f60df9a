// Package imaging prepares uploaded documents for OCR: PDF pages are
// rasterized with Ghostscript, and scans are normalized to grayscale PNG at
// a bounded size before recognition.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"image/png"

	_ "image/jpeg"

	"github.com/ledongthuc/pdf"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// PageCount returns the number of pages in a PDF.
func PageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf for page count: %w", err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// RenderFirstPage rasterizes page 1 of a PDF to a PNG file using
// Ghostscript and returns the file path plus a cleanup function that removes
// the containing temp directory.
func RenderFirstPage(pdfPath string, dpi int) (string, func(), error) {
	if dpi <= 0 {
		dpi = 180
	}

	tempDir, err := os.MkdirTemp("", "pdf-render-*")
	if err != nil {
		return "", nil, fmt.Errorf("create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(tempDir) }

	outputPath := filepath.Join(tempDir, "page-001.png")
	cmd := exec.Command("gs", gsArgs(pdfPath, outputPath, dpi)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("ghostscript render failed: %w, stderr: %s", err, stderr.String())
	}

	if _, err := os.Stat(outputPath); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("ghostscript produced no output: %w", err)
	}
	return outputPath, cleanup, nil
}

// gsArgs builds the Ghostscript command line for single-page PNG rendering.
// -dSAFER sandboxes file access; png16m gives 24-bit color output.
func gsArgs(pdfPath, outputPath string, dpi int) []string {
	return []string{
		"-dQUIET",
		"-dSAFER",
		"-dNOPAUSE",
		"-dBATCH",
		"-sDEVICE=png16m",
		"-r" + strconv.Itoa(dpi),
		"-dFirstPage=1",
		"-dLastPage=1",
		"-sOutputFile=" + outputPath,
		pdfPath,
	}
}

// Normalize decodes the image at srcPath, converts it to grayscale, scales
// it down if its longest edge exceeds maxEdge, and writes the result as PNG
// to dstPath. Grayscale input matches what the OCR models are fed upstream.
func Normalize(srcPath, dstPath string, maxEdge int) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxEdge > 0 {
		width, height = fitWithin(width, height, maxEdge)
	}

	gray := image.NewGray(image.Rect(0, 0, width, height))
	if width == bounds.Dx() && height == bounds.Dy() {
		xdraw.Draw(gray, gray.Bounds(), src, bounds.Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(gray, gray.Bounds(), src, bounds, xdraw.Src, nil)
	}

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create normalized image: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, gray); err != nil {
		return fmt.Errorf("encode normalized image: %w", err)
	}
	return nil
}

// fitWithin shrinks (w, h) proportionally so neither exceeds maxEdge.
// Dimensions already within the bound are returned unchanged.
func fitWithin(w, h, maxEdge int) (int, int) {
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxEdge {
		return w, h
	}
	scale := float64(maxEdge) / float64(longest)
	sw := int(float64(w)*scale + 0.5)
	sh := int(float64(h)*scale + 0.5)
	if sw < 1 {
		sw = 1
	}
	if sh < 1 {
		sh = 1
	}
	return sw, sh
}

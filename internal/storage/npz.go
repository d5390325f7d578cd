package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Array is a dense float64 array in row-major order.
type Array struct {
	Name  string
	Shape []int
	Data  []float64
}

func Vector(name string, data []float64) Array {
	return Array{Name: name, Shape: []int{len(data)}, Data: data}
}

// Matrix stacks equal-length rows into a 2-D array.
func Matrix(name string, rows [][]float64) (Array, error) {
	a := Array{Name: name, Shape: []int{len(rows), 0}}
	for i, r := range rows {
		if i == 0 {
			a.Shape[1] = len(r)
		} else if len(r) != a.Shape[1] {
			return Array{}, fmt.Errorf("%s: row %d has %d values, want %d", name, i, len(r), a.Shape[1])
		}
		a.Data = append(a.Data, r...)
	}
	return a, nil
}

func (a Array) size() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

var npyMagic = []byte("\x93NUMPY")

// writeNPY writes a as a version 1.0 .npy file of little-endian float64.
func writeNPY(w io.Writer, a Array) error {
	if a.size() != len(a.Data) {
		return fmt.Errorf("%s: shape %v does not hold %d values", a.Name, a.Shape, len(a.Data))
	}
	dims := make([]string, len(a.Shape))
	for i, s := range a.Shape {
		dims[i] = strconv.Itoa(s)
	}
	shape := strings.Join(dims, ", ")
	if len(a.Shape) == 1 {
		shape += ","
	}
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%s), }", shape)
	// Magic, version and length take 10 bytes; pad so data starts on a
	// 64-byte boundary.
	pad := 64 - (10+len(header)+1)%64
	header += strings.Repeat(" ", pad%64) + "\n"

	var b bytes.Buffer
	b.Write(npyMagic)
	b.Write([]byte{1, 0})
	binary.Write(&b, binary.LittleEndian, uint16(len(header)))
	b.WriteString(header)
	for _, v := range a.Data {
		binary.Write(&b, binary.LittleEndian, math.Float64bits(v))
	}
	_, err := w.Write(b.Bytes())
	return err
}

var (
	descrRe = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	orderRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

func readNPY(name string, data []byte) (Array, error) {
	if len(data) < 10 || !bytes.Equal(data[:6], npyMagic) {
		return Array{}, fmt.Errorf("%s: not an npy file", name)
	}
	if data[6] != 1 {
		return Array{}, fmt.Errorf("%s: unsupported npy version %d.%d", name, data[6], data[7])
	}
	hlen := int(binary.LittleEndian.Uint16(data[8:10]))
	if len(data) < 10+hlen {
		return Array{}, fmt.Errorf("%s: truncated header", name)
	}
	header := string(data[10 : 10+hlen])

	if m := descrRe.FindStringSubmatch(header); m == nil || m[1] != "<f8" {
		return Array{}, fmt.Errorf("%s: only <f8 arrays are supported", name)
	}
	if m := orderRe.FindStringSubmatch(header); m == nil || m[1] != "False" {
		return Array{}, fmt.Errorf("%s: only C-order arrays are supported", name)
	}
	m := shapeRe.FindStringSubmatch(header)
	if m == nil {
		return Array{}, fmt.Errorf("%s: no shape in header", name)
	}
	a := Array{Name: name}
	for _, f := range strings.Split(m[1], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return Array{}, fmt.Errorf("%s: bad shape %q", name, m[1])
		}
		a.Shape = append(a.Shape, n)
	}

	body := data[10+hlen:]
	n := a.size()
	if len(body) != 8*n {
		return Array{}, fmt.Errorf("%s: %d data bytes for %d values", name, len(body), n)
	}
	a.Data = make([]float64, n)
	for i := range a.Data {
		a.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(body[8*i:]))
	}
	return a, nil
}

// WriteBundle writes arrays as a deflated .npz archive, one "<name>.npy"
// entry each.
func WriteBundle(w io.Writer, arrays []Array) error {
	zw := zip.NewWriter(w)
	for _, a := range arrays {
		f, err := zw.CreateHeader(&zip.FileHeader{Name: a.Name + ".npy", Method: zip.Deflate})
		if err != nil {
			return err
		}
		if err := writeNPY(f, a); err != nil {
			return err
		}
	}
	return zw.Close()
}

// ReadBundle reads every array of the .npz archive at path, keyed by name.
func ReadBundle(path string) (map[string]Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return readBundle(f, st.Size())
}

func readBundle(r io.ReaderAt, size int64) (map[string]Array, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Array, len(zr.File))
	var errs []error
	for _, zf := range zr.File {
		name, ok := strings.CutSuffix(zf.Name, ".npy")
		if !ok {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		a, err := readNPY(name, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[name] = a
	}
	return out, errors.Join(errs...)
}

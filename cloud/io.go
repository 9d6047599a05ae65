package cloud

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seqsense/pcgol/pc"
	lzf "github.com/zhuyie/golzf"
)

type Format int

const (
	Binary Format = iota
	BinaryCompressed
)

var (
	errShortHeader = errors.New("header field must have value")
	errTruncated   = errors.New("truncated point data")
)

// Read parses a PCD stream in binary or binary_compressed format.
func Read(r io.Reader) (*pc.PointCloud, error) {
	rb := bufio.NewReader(r)
	pp := &pc.PointCloud{}
	var format string

L_HEADER:
	for {
		line, _, err := rb.ReadLine()
		if err != nil {
			return nil, err
		}
		args := strings.Fields(string(line))
		if len(args) == 0 || strings.HasPrefix(args[0], "#") {
			continue
		}
		if len(args) < 2 {
			return nil, errShortHeader
		}
		switch args[0] {
		case "VERSION":
			f, err := strconv.ParseFloat(args[1], 32)
			if err != nil {
				return nil, err
			}
			pp.Version = float32(f)
		case "FIELDS":
			pp.Fields = args[1:]
		case "SIZE":
			pp.Size = make([]int, len(args)-1)
			for i, s := range args[1:] {
				if pp.Size[i], err = strconv.Atoi(s); err != nil {
					return nil, err
				}
			}
		case "TYPE":
			pp.Type = args[1:]
		case "COUNT":
			pp.Count = make([]int, len(args)-1)
			for i, s := range args[1:] {
				if pp.Count[i], err = strconv.Atoi(s); err != nil {
					return nil, err
				}
			}
		case "WIDTH":
			if pp.Width, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "HEIGHT":
			if pp.Height, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "VIEWPOINT":
			pp.Viewpoint = make([]float32, len(args)-1)
			for i, s := range args[1:] {
				f, err := strconv.ParseFloat(s, 32)
				if err != nil {
					return nil, err
				}
				pp.Viewpoint[i] = float32(f)
			}
		case "POINTS":
			if pp.Points, err = strconv.Atoi(args[1]); err != nil {
				return nil, err
			}
		case "DATA":
			format = args[1]
			break L_HEADER
		}
	}
	if len(pp.Fields) != len(pp.Size) ||
		len(pp.Fields) != len(pp.Type) ||
		len(pp.Fields) != len(pp.Count) {
		return nil, errors.New("inconsistent field description")
	}

	switch format {
	case "binary":
		b, err := io.ReadAll(rb)
		if err != nil {
			return nil, err
		}
		need := pp.Points * pp.Stride()
		if len(b) < need {
			return nil, errTruncated
		}
		pp.Data = b[:need]
	case "binary_compressed":
		var nCompressed, nUncompressed int32
		if err := binary.Read(rb, binary.LittleEndian, &nCompressed); err != nil {
			return nil, err
		}
		if err := binary.Read(rb, binary.LittleEndian, &nUncompressed); err != nil {
			return nil, err
		}
		b, err := io.ReadAll(rb)
		if err != nil {
			return nil, err
		}
		if int(nCompressed) > len(b) {
			return nil, errTruncated
		}
		dec := make([]byte, nUncompressed)
		if nUncompressed > 0 {
			n, err := lzf.Decompress(b[:nCompressed], dec)
			if err != nil {
				return nil, err
			}
			if int(nUncompressed) != n {
				return nil, errors.New("wrong uncompressed size")
			}
		}
		// binary_compressed stores the cloud column-major. Reorder to
		// the point-major layout the iterators expect.
		head, offset := fieldLayout(pp)
		stride := pp.Stride()
		pp.Data = make([]byte, pp.Points*stride)
		for p := 0; p < pp.Points; p++ {
			for i := range head {
				esz := pp.Size[i] * pp.Count[i]
				to := p*stride + offset[i]
				from := head[i] + p*esz
				copy(pp.Data[to:to+esz], dec[from:from+esz])
			}
		}
	default:
		return nil, fmt.Errorf("unsupported data format %q", format)
	}
	return pp, nil
}

// Write serializes pp as a PCD stream.
func Write(w io.Writer, pp *pc.PointCloud, format Format) error {
	bw := bufio.NewWriter(w)
	version := pp.Version
	if version == 0 {
		version = 0.7
	}
	fmt.Fprintf(bw, "VERSION %.1f\n", version)
	fmt.Fprintf(bw, "FIELDS %s\n", strings.Join(pp.Fields, " "))
	writeInts(bw, "SIZE", pp.Size)
	fmt.Fprintf(bw, "TYPE %s\n", strings.Join(pp.Type, " "))
	writeInts(bw, "COUNT", pp.Count)
	fmt.Fprintf(bw, "WIDTH %d\n", pp.Width)
	fmt.Fprintf(bw, "HEIGHT %d\n", pp.Height)
	viewpoint := pp.Viewpoint
	if len(viewpoint) == 0 {
		viewpoint = []float32{0, 0, 0, 1, 0, 0, 0}
	}
	writeFloats(bw, "VIEWPOINT", viewpoint)
	fmt.Fprintf(bw, "POINTS %d\n", pp.Points)

	data := pp.Data[:pp.Points*pp.Stride()]
	switch format {
	case Binary:
		fmt.Fprintf(bw, "DATA binary\n")
		if _, err := bw.Write(data); err != nil {
			return err
		}
	case BinaryCompressed:
		fmt.Fprintf(bw, "DATA binary_compressed\n")
		columnar := toColumnar(pp, data)
		comp := make([]byte, len(columnar)+len(columnar)/2+64)
		var n int
		if len(columnar) > 0 {
			var err error
			n, err = lzf.Compress(columnar, comp)
			if err != nil {
				return fmt.Errorf("compress: %w", err)
			}
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(n)); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, int32(len(columnar))); err != nil {
			return err
		}
		if _, err := bw.Write(comp[:n]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %d", int(format))
	}
	return bw.Flush()
}

func fieldLayout(pp *pc.PointCloud) (head, offset []int) {
	head = make([]int, len(pp.Fields))
	offset = make([]int, len(pp.Fields))
	var pos, off int
	for i := range pp.Fields {
		head[i] = pos
		offset[i] = off
		pos += pp.Size[i] * pp.Count[i] * pp.Points
		off += pp.Size[i] * pp.Count[i]
	}
	return head, offset
}

func toColumnar(pp *pc.PointCloud, data []byte) []byte {
	out := make([]byte, len(data))
	head, offset := fieldLayout(pp)
	stride := pp.Stride()
	for p := 0; p < pp.Points; p++ {
		for i := range head {
			esz := pp.Size[i] * pp.Count[i]
			from := p*stride + offset[i]
			to := head[i] + p*esz
			copy(out[to:to+esz], data[from:from+esz])
		}
	}
	return out
}

func writeInts(w io.Writer, key string, vals []int) {
	ss := make([]string, len(vals))
	for i, v := range vals {
		ss[i] = strconv.Itoa(v)
	}
	fmt.Fprintf(w, "%s %s\n", key, strings.Join(ss, " "))
}

func writeFloats(w io.Writer, key string, vals []float32) {
	ss := make([]string, len(vals))
	for i, v := range vals {
		ss[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	fmt.Fprintf(w, "%s %s\n", key, strings.Join(ss, " "))
}

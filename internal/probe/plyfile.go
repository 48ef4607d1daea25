package probe

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/unixpickle/model3d/fileformats"
)

// ErrNotPLY is returned when a file does not start with the "ply" magic line.
var ErrNotPLY = errors.New("not a PLY file (missing magic)")

// errStop ends decodeRows early without an error.
var errStop = errors.New("stop")

// plyFile is an open PLY file positioned just past its header.
type plyFile struct {
	f      *os.File
	r      *bufio.Reader
	header *fileformats.PLYHeader
	size   int64
}

func openPLY(path string) (*plyFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	r := bufio.NewReader(f)
	magic, _ := r.Peek(4)
	if len(magic) < 4 || string(magic[:3]) != "ply" || (magic[3] != '\n' && magic[3] != '\r') {
		f.Close()
		return nil, ErrNotPLY
	}
	h, err := fileformats.NewPLYHeaderRead(r)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &plyFile{f: f, r: r, header: h, size: st.Size()}, nil
}

func (p *plyFile) Close() error { return p.f.Close() }

func (p *plyFile) element(name string) *fileformats.PLYElement {
	for _, e := range p.header.Elements {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// decodeRows calls fn for every row of every element, in file order.
// Returning errStop from fn ends decoding with a nil error.
func (p *plyFile) decodeRows(fn func(e *fileformats.PLYElement, i int, row []fileformats.PLYValue) error) error {
	var order binary.ByteOrder
	switch p.header.Format {
	case fileformats.PLYFormatBinaryLittle:
		order = binary.LittleEndian
	case fileformats.PLYFormatBinaryBig:
		order = binary.BigEndian
	}
	for _, e := range p.header.Elements {
		for i := 0; int64(i) < e.Count; i++ {
			row, err := p.decodeRow(e, order)
			if err != nil {
				return fmt.Errorf("element %q row %d: %w", e.Name, i, err)
			}
			if err := fn(e, i, row); err != nil {
				if errors.Is(err, errStop) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

func (p *plyFile) decodeRow(e *fileformats.PLYElement, order binary.ByteOrder) ([]fileformats.PLYValue, error) {
	if order != nil {
		row, err := e.DecodeInstanceBinary(order, p.r)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return row, err
	}
	for {
		line, err := p.r.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err == io.EOF {
				return nil, io.ErrUnexpectedEOF
			} else if err != nil {
				return nil, err
			}
			continue
		}
		if strings.Fields(line)[0] == "comment" {
			continue
		}
		return e.DecodeInstanceString(line)
	}
}

func formatName(f fileformats.PLYFormat) string {
	switch f {
	case fileformats.PLYFormatASCII:
		return "ascii"
	case fileformats.PLYFormatBinaryLittle:
		return "binary_little_endian"
	case fileformats.PLYFormatBinaryBig:
		return "binary_big_endian"
	}
	return "unknown"
}

func propIndex(e *fileformats.PLYElement, name string) int {
	for i, p := range e.Properties {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func hasProps(e *fileformats.PLYElement, names ...string) bool {
	for _, n := range names {
		if propIndex(e, n) < 0 {
			return false
		}
	}
	return true
}

// scalar converts a decoded scalar property to float64.
func scalar(v fileformats.PLYValue) (float64, error) {
	switch v := v.(type) {
	case fileformats.PLYValueInt8:
		return float64(v.Value), nil
	case fileformats.PLYValueUint8:
		return float64(v.Value), nil
	case fileformats.PLYValueInt16:
		return float64(v.Value), nil
	case fileformats.PLYValueUint16:
		return float64(v.Value), nil
	case fileformats.PLYValueInt32:
		return float64(v.Value), nil
	case fileformats.PLYValueUint32:
		return float64(v.Value), nil
	case fileformats.PLYValueInt64:
		return float64(v.Value), nil
	case fileformats.PLYValueUint64:
		return float64(v.Value), nil
	case fileformats.PLYValueFloat32:
		return float64(v.Value), nil
	case fileformats.PLYValueFloat64:
		return v.Value, nil
	}
	return 0, fmt.Errorf("expected scalar value, got %T", v)
}

// indices converts a decoded list property of integers.
func indices(v fileformats.PLYValue) ([]int, error) {
	list, ok := v.(fileformats.PLYValueList)
	if !ok {
		return nil, fmt.Errorf("expected list value, got %T", v)
	}
	res := make([]int, len(list.Values))
	for i, x := range list.Values {
		n, err := x.LengthValue()
		if err != nil {
			return nil, err
		}
		res[i] = n
	}
	return res, nil
}

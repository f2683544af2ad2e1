package meshio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/meshview/pkg/mesh"
)

type plyProperty struct {
	name      string
	kind      string // scalar type, or item type for lists
	countKind string // non-empty for list properties
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   string
	order    binary.ByteOrder
	elements []plyElement
	length   int64 // header bytes, end_header line included
}

// minSize is the fewest bytes one record of el can take: a byte per ASCII
// value, or the binary width of each scalar and of each list's length.
func (el plyElement) minSize(ascii bool) int64 {
	var n int64
	for _, p := range el.props {
		switch {
		case ascii:
			n++
		case p.countKind != "":
			n += int64(plySize(p.countKind))
		default:
			n += int64(plySize(p.kind))
		}
	}
	return n
}

// checkBody rejects headers whose element counts cannot fit in the body
// bytes that follow them.
func (h *plyHeader) checkBody(body int64) error {
	var need int64
	for _, el := range h.elements {
		need += int64(el.count) * el.minSize(h.format == "ascii")
		if need > body {
			return fmt.Errorf("element %s: %d records do not fit in %d bytes", el.name, el.count, body)
		}
	}
	return nil
}

// readPLY decodes ASCII and binary PLY. Extra scalar vertex properties become
// point arrays, extra scalar face properties become cell arrays.
func readPLY(path string) (*mesh.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	h, err := readPLYHeader(br)
	if err != nil {
		return nil, fmt.Errorf("ply: %w", err)
	}
	body := info.Size() - h.length
	if err := h.checkBody(body); err != nil {
		return nil, fmt.Errorf("ply: %w", err)
	}

	var next func(kind string) (float64, error)
	switch h.format {
	case "ascii":
		t := newTokens(br, body)
		next = func(string) (float64, error) { return t.number() }
	case "binary_little_endian", "binary_big_endian":
		next = func(kind string) (float64, error) { return readBinary(br, h.order, kind) }
	default:
		return nil, fmt.Errorf("ply: format %q is not supported", h.format)
	}

	m := &mesh.Mesh{}
	var pointArrays, cellArrays []mesh.DataArray
	for _, el := range h.elements {
		switch el.name {
		case "vertex":
			pointArrays, err = readPLYVertices(m, el, next)
		case "face":
			cellArrays, err = readPLYFaces(m, el, next)
		default:
			err = skipPLYElement(el, next)
		}
		if err != nil {
			return nil, fmt.Errorf("ply: element %s: %w", el.name, err)
		}
	}
	for _, a := range pointArrays {
		m.AddArray(a.Name, a.Association, a.Values)
	}
	for _, a := range cellArrays {
		if _, dup := m.Array(a.Name); !dup {
			m.AddArray(a.Name, a.Association, a.Values)
		}
	}
	return m, nil
}

func readPLYHeader(br *bufio.Reader) (*plyHeader, error) {
	h := &plyHeader{}
	first := true
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		h.length += int64(len(line))
		fields := strings.Fields(line)
		if first {
			if len(fields) != 1 || fields[0] != "ply" {
				return nil, errors.New("missing 'ply' magic")
			}
			first = false
			continue
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, errors.New("malformed format line")
			}
			h.format = fields[1]
			switch h.format {
			case "binary_little_endian":
				h.order = binary.LittleEndian
			case "binary_big_endian":
				h.order = binary.BigEndian
			}
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("malformed element line %q", strings.TrimSpace(line))
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 || n > maxCount {
				return nil, fmt.Errorf("bad element count %q", fields[2])
			}
			h.elements = append(h.elements, plyElement{name: fields[1], count: n})
		case "property":
			if len(h.elements) == 0 {
				return nil, errors.New("property before any element")
			}
			el := &h.elements[len(h.elements)-1]
			switch {
			case len(fields) == 5 && fields[1] == "list":
				el.props = append(el.props, plyProperty{name: fields[4], kind: fields[3], countKind: fields[2]})
			case len(fields) == 3:
				el.props = append(el.props, plyProperty{name: fields[2], kind: fields[1]})
			default:
				return nil, fmt.Errorf("malformed property line %q", strings.TrimSpace(line))
			}
		case "end_header":
			if h.format == "" {
				return nil, errors.New("missing format line")
			}
			return h, nil
		case "comment", "obj_info":
		default:
			return nil, fmt.Errorf("unexpected header line %q", strings.TrimSpace(line))
		}
	}
}

var plyPositions = map[string]int{"x": 0, "y": 1, "z": 2}

// plyIgnored lists vertex properties that are geometry, not data arrays.
var plyIgnored = map[string]bool{"nx": true, "ny": true, "nz": true}

func readPLYVertices(m *mesh.Mesh, el plyElement, next func(string) (float64, error)) ([]mesh.DataArray, error) {
	m.Points = make([]float32, 0, 3*min(el.count, growChunk))
	var arrays []mesh.DataArray
	slot := make([]int, len(el.props))
	for i, p := range el.props {
		slot[i] = -1
		if _, pos := plyPositions[p.name]; pos || plyIgnored[p.name] || p.countKind != "" {
			continue
		}
		slot[i] = len(arrays)
		arrays = append(arrays, mesh.DataArray{Name: p.name, Association: mesh.PointData, Values: make([]float64, 0, min(el.count, growChunk))})
	}
	for range el.count {
		var pos [3]float32
		for i, p := range el.props {
			if p.countKind != "" {
				if _, err := readPLYList(p, next); err != nil {
					return nil, err
				}
				continue
			}
			val, err := next(p.kind)
			if err != nil {
				return nil, err
			}
			if axis, ok := plyPositions[p.name]; ok {
				pos[axis] = float32(val)
			} else if slot[i] >= 0 {
				arrays[slot[i]].Values = append(arrays[slot[i]].Values, val)
			}
		}
		m.Points = append(m.Points, pos[0], pos[1], pos[2])
	}
	return arrays, nil
}

func readPLYFaces(m *mesh.Mesh, el plyElement, next func(string) (float64, error)) ([]mesh.DataArray, error) {
	var arrays []mesh.DataArray
	slot := make([]int, len(el.props))
	for i, p := range el.props {
		slot[i] = -1
		if p.countKind != "" {
			continue
		}
		slot[i] = len(arrays)
		arrays = append(arrays, mesh.DataArray{Name: p.name, Association: mesh.CellData})
	}
	for f := 0; f < el.count; f++ {
		var tris [][3]uint32
		vals := make([]float64, len(arrays))
		for i, p := range el.props {
			if p.countKind != "" {
				ids, err := readPLYList(p, next)
				if err != nil {
					return nil, err
				}
				if p.name == "vertex_indices" || p.name == "vertex_index" {
					tris = fan(toIDs(ids))
				}
				continue
			}
			val, err := next(p.kind)
			if err != nil {
				return nil, err
			}
			if slot[i] >= 0 {
				vals[slot[i]] = val
			}
		}
		for _, tri := range tris {
			m.Triangles = append(m.Triangles, tri[0], tri[1], tri[2])
			for j := range arrays {
				arrays[j].Values = append(arrays[j].Values, vals[j])
			}
		}
	}
	return arrays, nil
}

func readPLYList(p plyProperty, next func(string) (float64, error)) ([]float64, error) {
	n, err := next(p.countKind)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > 1024 {
		return nil, fmt.Errorf("list %s: bad length %v", p.name, n)
	}
	out := make([]float64, int(n))
	for i := range out {
		if out[i], err = next(p.kind); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func skipPLYElement(el plyElement, next func(string) (float64, error)) error {
	for i := 0; i < el.count; i++ {
		for _, p := range el.props {
			var err error
			if p.countKind != "" {
				_, err = readPLYList(p, next)
			} else {
				_, err = next(p.kind)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readBinary(r io.Reader, order binary.ByteOrder, kind string) (float64, error) {
	var buf [8]byte
	size := plySize(kind)
	if size == 0 {
		return 0, fmt.Errorf("unknown property type %q", kind)
	}
	if _, err := io.ReadFull(r, buf[:size]); err != nil {
		return 0, err
	}
	b := buf[:size]
	switch kind {
	case "char", "int8":
		return float64(int8(b[0])), nil
	case "uchar", "uint8":
		return float64(b[0]), nil
	case "short", "int16":
		return float64(int16(order.Uint16(b))), nil
	case "ushort", "uint16":
		return float64(order.Uint16(b)), nil
	case "int", "int32":
		return float64(int32(order.Uint32(b))), nil
	case "uint", "uint32":
		return float64(order.Uint32(b)), nil
	case "float", "float32":
		return float64(math.Float32frombits(order.Uint32(b))), nil
	default:
		return math.Float64frombits(order.Uint64(b)), nil
	}
}

func plySize(kind string) int {
	switch kind {
	case "char", "int8", "uchar", "uint8":
		return 1
	case "short", "int16", "ushort", "uint16":
		return 2
	case "int", "int32", "uint", "uint32", "float", "float32":
		return 4
	case "double", "float64":
		return 8
	}
	return 0
}

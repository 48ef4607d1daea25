package probe

import (
	"fmt"

	"github.com/unixpickle/essentials"
	"github.com/unixpickle/model3d/fileformats"
	"github.com/unixpickle/model3d/model3d"
)

// ReadDensities returns the per-vertex "value" property of the PLY file at
// path, or nil when the vertices carry no such property.
func ReadDensities(path string) ([]float64, error) {
	p, err := openPLY(path)
	if err != nil {
		return nil, fmt.Errorf("read densities %s: %w", path, err)
	}
	defer p.Close()

	v := p.element("vertex")
	if v == nil {
		return nil, fmt.Errorf("read densities %s: no vertex element", path)
	}
	vi := propIndex(v, "value")
	if vi < 0 {
		return nil, nil
	}

	values := make([]float64, 0, v.Count)
	err = p.decodeRows(func(e *fileformats.PLYElement, i int, row []fileformats.PLYValue) error {
		if e != v {
			return errStop
		}
		x, err := scalar(row[vi])
		if err != nil {
			return err
		}
		values = append(values, x)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read densities %s: %w", path, err)
	}
	return values, nil
}

// SummarizeMesh loads the mesh at path. Polygons are fan-triangulated.
func SummarizeMesh(path string) (*MeshSummary, error) {
	p, err := openPLY(path)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", path, err)
	}
	defer p.Close()

	v := p.element("vertex")
	if v == nil || !hasProps(v, "x", "y", "z") {
		return nil, fmt.Errorf("summarize %s: no vertex positions", path)
	}
	xi, yi, zi := propIndex(v, "x"), propIndex(v, "y"), propIndex(v, "z")
	vi := propIndex(v, "value")

	fi := -1
	fe := p.element("face")
	if fe != nil {
		if fi = propIndex(fe, "vertex_indices"); fi < 0 {
			fi = propIndex(fe, "vertex_index")
		}
	}

	coords := make([]model3d.Coord3D, 0, v.Count)
	var densities []float64
	if vi >= 0 {
		densities = make([]float64, 0, v.Count)
	}
	var tris [][3]int

	err = p.decodeRows(func(e *fileformats.PLYElement, i int, row []fileformats.PLYValue) error {
		switch {
		case e == v:
			var xyz [3]float64
			for k, idx := range [3]int{xi, yi, zi} {
				x, err := scalar(row[idx])
				if err != nil {
					return err
				}
				xyz[k] = x
			}
			coords = append(coords, model3d.NewCoord3DArray(xyz))
			if vi >= 0 {
				d, err := scalar(row[vi])
				if err != nil {
					return err
				}
				densities = append(densities, d)
			}
		case e == fe && fi >= 0:
			idx, err := indices(row[fi])
			if err != nil {
				return fmt.Errorf("face %d: %w", i, err)
			}
			for _, x := range idx {
				if x < 0 || x >= len(coords) {
					return fmt.Errorf("face %d: vertex index %d out of range", i, x)
				}
			}
			for k := 2; k < len(idx); k++ {
				tris = append(tris, [3]int{idx[0], idx[k-1], idx[k]})
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", path, err)
	}

	return summarize(coords, tris, densities), nil
}

func summarize(coords []model3d.Coord3D, tris [][3]int, densities []float64) *MeshSummary {
	s := &MeshSummary{
		Vertices:  len(coords),
		Triangles: len(tris),
		Densities: densities,
	}
	if len(coords) > 0 {
		s.Min, s.Max = coords[0], coords[0]
		for _, c := range coords[1:] {
			s.Min = s.Min.Min(c)
			s.Max = s.Max.Max(c)
		}
	}
	if len(tris) == 0 {
		return s
	}

	triangles := make([]*model3d.Triangle, len(tris))
	areas := make([]float64, len(tris))
	essentials.ConcurrentMap(0, len(tris), func(i int) {
		t := tris[i]
		triangles[i] = &model3d.Triangle{coords[t[0]], coords[t[1]], coords[t[2]]}
		areas[i] = triangles[i].Area()
	})
	for _, a := range areas {
		s.Area += a
	}

	mesh := model3d.NewMeshTriangles(triangles)
	s.Closed = !mesh.NeedsRepair()
	return s
}

package probe

import (
	"strings"

	"github.com/backmassage/poissonbatch/internal/display"
	"github.com/unixpickle/model3d/model3d"
)

// CloudInfo summarizes a PLY header. For reconstruction inputs the vertex
// element is the point cloud; for outputs it is the mesh's vertex set.
type CloudInfo struct {
	Path       string
	Size       int64
	Format     string
	Vertices   int
	Faces      int
	HasNormals bool // nx, ny, nz
	HasColors  bool // red, green, blue
	HasDensity bool // value
	Properties []string
}

// Oriented reports whether the points carry normals. Screened Poisson
// reconstruction needs oriented samples.
func (c *CloudInfo) Oriented() bool { return c.HasNormals }

// Describe renders a one-line summary, e.g. "12,345 points | normals | colors".
func (c *CloudInfo) Describe() string {
	parts := []string{display.FormatCount(c.Vertices) + " points"}
	if c.Faces > 0 {
		parts = append(parts, display.FormatCount(c.Faces)+" faces")
	}
	if c.HasNormals {
		parts = append(parts, "normals")
	} else {
		parts = append(parts, "no normals")
	}
	if c.HasColors {
		parts = append(parts, "colors")
	}
	if c.HasDensity {
		parts = append(parts, "density")
	}
	return strings.Join(parts, " | ")
}

// MeshSummary is the result of loading a reconstructed mesh.
type MeshSummary struct {
	Vertices  int
	Triangles int
	Min       model3d.Coord3D
	Max       model3d.Coord3D
	Area      float64

	// Closed is true when every edge is shared by exactly two triangles.
	// Trimming deliberately opens the surface, so a trimmed mesh is
	// normally not closed.
	Closed bool

	// Densities holds the per-vertex "value" property, nil when absent.
	Densities []float64
}

// Extent returns the bounding-box size along each axis.
func (m *MeshSummary) Extent() model3d.Coord3D {
	return m.Max.Sub(m.Min)
}

// Package probe inspects the PLY files on either side of the reconstruction
// tools.
//
// Three entry points, from cheapest to most expensive:
//   - Probe(path): header only. Point count and which per-point attributes
//     (normals, colors, density) the file carries.
//   - ReadDensities(path): the per-vertex "value" property that the
//     reconstruction tool writes when asked for density output. Decoding
//     stops before the faces.
//   - SummarizeMesh(path): the whole mesh, assembled into a model3d.Mesh for
//     bounds, surface area and a closedness check.
//
// NewDensityStats turns density values into the percentiles logged before
// trimming.
package probe

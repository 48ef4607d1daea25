package probe

import (
	"fmt"

	"github.com/unixpickle/model3d/fileformats"
)

// Probe reads the header of the PLY file at path.
func Probe(path string) (*CloudInfo, error) {
	p, err := openPLY(path)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	defer p.Close()

	info := fromHeader(p.header)
	info.Path = path
	info.Size = p.size
	return &info, nil
}

// fromHeader extracts the attributes the driver cares about from a parsed header.
func fromHeader(h *fileformats.PLYHeader) CloudInfo {
	info := CloudInfo{Format: formatName(h.Format)}
	for _, e := range h.Elements {
		switch e.Name {
		case "face":
			info.Faces = int(e.Count)
		case "vertex":
			info.Vertices = int(e.Count)
			info.HasNormals = hasProps(e, "nx", "ny", "nz")
			info.HasColors = hasProps(e, "red", "green", "blue")
			info.HasDensity = hasProps(e, "value")
			for _, p := range e.Properties {
				info.Properties = append(info.Properties, p.Name)
			}
		}
	}
	return info
}

package mesh

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/notargets/sprmetric/element"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Model is the YAML description of a solved mesh
type Model struct {
	Dimension int            `yaml:"dimension"`
	MeshFile  string         `yaml:"mesh_file,omitempty"` // Tetrahedral mesh file replacing nodes and element connectivity
	Nodes     [][]float64    `yaml:"nodes,omitempty"`
	Elements  []ElementModel `yaml:"elements"`
	Contact   []ContactModel `yaml:"contact,omitempty"`
	Material  *Material      `yaml:"material,omitempty"`
}

// ElementModel is one element of a Model
type ElementModel struct {
	Nodes        []int       `yaml:"nodes,omitempty"`
	Stress       [][]float64 `yaml:"stress"`                  // Per integration point Voigt stress
	Points       [][]float64 `yaml:"points,omitempty"`        // Integration point coordinates, centroid if empty
	ErrorEnergy  []float64   `yaml:"error_energy,omitempty"`  // Per point, evaluated from the material if empty
	StrainEnergy []float64   `yaml:"strain_energy,omitempty"` // Per point, evaluated from the material if empty
}

// ContactModel assigns contact data to a node
type ContactModel struct {
	Node     int       `yaml:"node"`
	Pressure float64   `yaml:"pressure"`
	Normal   []float64 `yaml:"normal,omitempty"` // Computed from the boundary if empty
}

// Material holds the linear elastic constants used to evaluate energies
type Material struct {
	Young      float64 `yaml:"young"`
	Poisson    float64 `yaml:"poisson"`
	Hypothesis string  `yaml:"hypothesis,omitempty"` // plane_strain, plane_stress or solid
}

// LoadModel reads a model file
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ParseModel(f)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	if m.MeshFile != "" && !filepath.IsAbs(m.MeshFile) {
		m.MeshFile = filepath.Join(filepath.Dir(path), m.MeshFile)
	}
	return m, nil
}

// ParseModel decodes a model, rejecting unknown keys
func ParseModel(r io.Reader) (*Model, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Model
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &m, nil
}

// Build creates the mesh described by the model. Contact nodes without a
// normal get the boundary normal.
func (md *Model) Build() (*Mesh, error) {
	dim := element.Dimensionality(md.Dimension)
	if dim != element.D2 && dim != element.D3 {
		return nil, fmt.Errorf("unsupported model dimension %d", md.Dimension)
	}
	m, err := md.geometry(dim)
	if err != nil {
		return nil, err
	}
	if len(md.Elements) != m.NumElements() {
		return nil, fmt.Errorf("%d element entries for %d elements", len(md.Elements), m.NumElements())
	}

	for k, em := range md.Elements {
		var points []r3.Vec
		if len(em.Points) > 0 {
			points = make([]r3.Vec, len(em.Points))
			for q, x := range em.Points {
				if points[q], err = toVec(x, md.Dimension); err != nil {
					return nil, fmt.Errorf("element %d point %d: %w", k, q, err)
				}
			}
		}
		if err = m.elements[k].SetStress(em.Stress, points); err != nil {
			return nil, err
		}
		m.elements[k].SetEnergies(em.ErrorEnergy, em.StrainEnergy)
	}

	needNormals := false
	for _, c := range md.Contact {
		if c.Node < 0 || c.Node >= len(m.nodes) {
			return nil, fmt.Errorf("contact node %d out of range", c.Node)
		}
		data := m.nodes[c.Node].data
		data.SetScalar(element.ContactPressure, c.Pressure)
		if len(c.Normal) > 0 {
			if len(c.Normal) != md.Dimension {
				return nil, fmt.Errorf("contact node %d: normal has %d components", c.Node, len(c.Normal))
			}
			data.SetVector(element.Normal, c.Normal)
		} else {
			needNormals = true
		}
	}
	if needNormals {
		if _, err = ComputeBoundaryNormals(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// geometry builds the mesh from the mesh file or the inline nodes
func (md *Model) geometry(dim element.Dimensionality) (*Mesh, error) {
	if md.MeshFile != "" {
		if dim != element.D3 {
			return nil, fmt.Errorf("mesh file %s needs dimension 3", md.MeshFile)
		}
		return ReadTetMesh(md.MeshFile)
	}

	coords := make([]r3.Vec, len(md.Nodes))
	for i, x := range md.Nodes {
		v, err := toVec(x, md.Dimension)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		coords[i] = v
	}

	EToV := make([][]int, len(md.Elements))
	for k, em := range md.Elements {
		EToV[k] = em.Nodes
	}
	return New(dim, coords, EToV)
}

func toVec(x []float64, dim int) (r3.Vec, error) {
	if len(x) != dim {
		return r3.Vec{}, fmt.Errorf("%d coordinates in %dD", len(x), dim)
	}
	v := r3.Vec{X: x[0], Y: x[1]}
	if dim == 3 {
		v.Z = x[2]
	}
	return v, nil
}

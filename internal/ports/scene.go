package ports

// SceneObjectRecord describes one object in the rendered scene as reported by
// the rendering client. Position, rotation and scale are x/y/z triples.
type SceneObjectRecord struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Name     string     `json:"name,omitempty"`
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
	Scale    [3]float64 `json:"scale"`
	// Payload optionally carries the full-fidelity object state for
	// persistence; it is never interpreted here.
	Payload map[string]any `json:"payload,omitempty"`
}

package domain

import "time"

// MeshRecord describes a mesh stored in the catalog.
type MeshRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SourceFormat string    `json:"source_format"`
	Checksum     string    `json:"checksum"`
	Dimension    int       `json:"dimension"`
	GroupCount   int       `json:"group_count"`
	EntityCount  int       `json:"entity_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summarize counts the groups and entities of src.
func Summarize(src Source) (groups, entities int) {
	for _, kind := range EntityKinds {
		for g := range src.Groups(kind) {
			groups++
			entities += g.Metadata().Len
		}
	}
	return groups, entities
}

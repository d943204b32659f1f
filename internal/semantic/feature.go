// Package semantic lifts code entities into verb+object feature
// descriptions, with LLM-assisted extraction and deterministic fallbacks.
package semantic

// Feature describes what a code unit does: a verb+object phrase plus
// optional atomic sub-features and keywords.
type Feature struct {
	Description string   `json:"description"`
	SubFeatures []string `json:"subFeatures,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Clone returns a deep copy of the feature.
func (f *Feature) Clone() *Feature {
	if f == nil {
		return nil
	}
	c := &Feature{Description: f.Description}
	c.SubFeatures = append(c.SubFeatures, f.SubFeatures...)
	c.Keywords = append(c.Keywords, f.Keywords...)
	return c
}

// EntityInput is the unit of semantic extraction.
type EntityInput struct {
	Type          string // function, class, method, file, module
	Name          string
	FilePath      string
	Parent        string
	SourceCode    string
	Documentation string
}

// FeatureCache is the persistence contract for extracted features.
// Implemented by the semcache package.
type FeatureCache interface {
	Get(key, hash string) (*Feature, bool)
	Set(key, hash string, f *Feature) error
}

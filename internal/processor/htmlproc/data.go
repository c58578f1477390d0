package htmlproc

import "net/url"

// Param configures a Processor (spec §4.8, plus the entropy threshold
// the Family Generalizer needs and the pagination-diff-ratio policy's
// threshold).
type Param struct {
	EntropyThreshold        float64
	FamilyMaxSamples        int
	PaginationDiffThreshold float64
	BodySpecificityBias     float64
	LinkDensityThreshold    float64
}

func (p Param) withDefaults() Param {
	if p.EntropyThreshold == 0 {
		p.EntropyThreshold = 3.5
	}
	if p.FamilyMaxSamples == 0 {
		p.FamilyMaxSamples = 3
	}
	if p.PaginationDiffThreshold == 0 {
		p.PaginationDiffThreshold = 0.15
	}
	if p.BodySpecificityBias == 0 {
		p.BodySpecificityBias = 0.6
	}
	if p.LinkDensityThreshold == 0 {
		p.LinkDensityThreshold = 0.5
	}
	return p
}

var paginationParams = map[string]bool{"page": true, "offset": true, "cursor": true}

// paginationSiblingKey returns the canonical string with pagination
// query parameters removed, grouping URLs that differ only by page/
// offset/cursor (spec §4.8's pagination policy) under one key.
func paginationSiblingKey(u url.URL) string {
	values := u.Query()
	changed := false
	for k := range paginationParams {
		if values.Has(k) {
			values.Del(k)
			changed = true
		}
	}
	if !changed {
		return ""
	}
	stripped := u
	stripped.RawQuery = values.Encode()
	return stripped.String()
}

package family

/*
Family Generalizer (spec §4.3)

Generalizes a canonical URL's path into a pattern shared by structurally
identical endpoints, and tracks how many hits and how many saved
samples each pattern has accumulated.

Family key = host + generalized_path + normalized_query_shape.

Sample selection policy: save the first N = family_max_samples hits for
a family key and skip every hit after that. SamplesSaved never exceeds
family_max_samples.
*/

// Candidate describes one hit passed to Registry.Observe. The cap
// decision itself reads none of its fields; it depends only on the
// family's SamplesSaved count.
type Candidate struct {
	TitleLen int
	BodyLen  int
	Status   int
}

// Counters is the per-family-key bookkeeping persisted into
// manifest.json's patterns map.
type Counters struct {
	Count        int
	SamplesSaved int
	Skipped      int
}

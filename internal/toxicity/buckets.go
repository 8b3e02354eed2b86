package toxicity

// Perspective API attribute names.
const (
	AttributeToxicity       = "TOXICITY"
	AttributeSevereToxicity = "SEVERE_TOXICITY"
	AttributeInsult         = "INSULT"
	AttributeProfanity      = "PROFANITY"
	AttributeThreat         = "THREAT"
	AttributeIdentityAttack = "IDENTITY_ATTACK"
)

// AllAttributes lists every attribute requested when scoring a comment.
var AllAttributes = []string{
	AttributeToxicity,
	AttributeSevereToxicity,
	AttributeInsult,
	AttributeProfanity,
	AttributeThreat,
	AttributeIdentityAttack,
}

// Bucket is one named toxicity range in the taxonomy shown to users. MaxScore
// is exclusive unless it equals 1, in which case it is inclusive (scores are
// capped at 1, so the top bucket must close the interval).
type Bucket struct {
	Name            string
	MinScore        float64
	MaxScore        float64
	IncludeUnscored bool
}

// Buckets returns the canonical taxonomy ordered from highest to lowest
// priority, ending with the unable-to-score bucket. The priority sort derives
// its unscored threshold from this ordering, so the unable-to-score bucket
// must stay last.
func Buckets() []Bucket {
	return []Bucket{
		{Name: "Likely harassment", MinScore: 0.85, MaxScore: 1},
		{Name: "Potentially harmful", MinScore: 0.7, MaxScore: 0.85},
		{Name: "Unsure if harmful", MinScore: 0.6, MaxScore: 0.7},
		{Name: "Unlikely to be harmful", MinScore: 0.5, MaxScore: 0.6},
		{Name: "Unable to score", MinScore: 0, MaxScore: 0.5, IncludeUnscored: true},
	}
}

// UnscoredPriorityThreshold returns the score an unscored item is treated as
// having when sorting by priority: the MinScore of the bucket immediately
// above the unable-to-score bucket. The value is looked up positionally so a
// reordered taxonomy changes the threshold rather than silently breaking it.
func UnscoredPriorityThreshold(buckets []Bucket) float64 {
	if len(buckets) < 2 {
		return 0
	}
	return buckets[len(buckets)-2].MinScore
}

package extract

// Candidate origins.
const (
	OriginChat        = "chat"
	OriginContactOnly = "contact-only"
)

// Detection rules, tagged on each candidate so detectors can be tuned and
// tested independently.
const (
	RulePhoneMention = "phone-mention"
	RuleContactShare = "contact-share"
)

// Candidate is an unmerged, pre-normalization recommendation mention.
// Ambiguous messages (several phone numbers) yield one candidate per
// number, sharing the same context.
type Candidate struct {
	ProviderName string
	Service      string
	Phones       []string
	Context      string
	MessageIndex int    // position in the transcript, -1 for contact-only entries
	Recommender  string // normalized sender phone, or the sender as-is
	Rule         string
	Origin       string
	ShareFile    string // lowercased .vcf filename for contact-share candidates
	ContactKey   string // lookup-only reference into the contact table, set by the matcher
}

// Config holds the tunable extraction policy knobs.
type Config struct {
	// DefaultRegion resolves bare local-format numbers (ISO 3166-1 alpha-2).
	DefaultRegion string
	// ProximityWindow is how many preceding non-system messages are
	// scanned for a service cue (ask-then-answer exchanges). Default 2.
	ProximityWindow int
}

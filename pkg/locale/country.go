package locale

// DefaultTimezone is used when a phone number matches no supported
// country.
const DefaultTimezone = "UTC"

// Country describes a dial region that purchaser phone numbers are
// accepted from.
type Country struct {
	Code            string   // ISO 3166-1 alpha-2 country code (e.g., "IL", "US")
	Name            string   // Human-readable country name
	PhonePrefixes   []string // International dial prefixes, with and without "+"
	DefaultTimezone string   // IANA timezone identifier (e.g., "Asia/Jerusalem")
}

// Countries lists the supported regions in the order phone parsing
// should try them when no dial prefix gives a better hint.
var Countries = []Country{
	{
		Code:            "IL",
		Name:            "Israel",
		PhonePrefixes:   []string{"+972", "972"},
		DefaultTimezone: "Asia/Jerusalem",
	},
	{
		Code:            "US",
		Name:            "United States",
		PhonePrefixes:   []string{"+1", "1"},
		DefaultTimezone: "America/New_York",
	},
}

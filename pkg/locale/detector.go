package locale

import "strings"

// InferCountryFromPhone matches a raw phone number against the known
// dial prefixes. Returns nil when no supported country matches.
func InferCountryFromPhone(phone string) *Country {
	normalized := strings.TrimSpace(phone)
	if normalized == "" {
		return nil
	}

	for i := range Countries {
		for _, prefix := range Countries[i].PhonePrefixes {
			if strings.HasPrefix(normalized, prefix) {
				return &Countries[i]
			}
		}
	}

	return nil
}

// InferTimezoneFromPhone guesses the purchaser's timezone from the
// phone's dial prefix. Consumers use it as a display hint only.
func InferTimezoneFromPhone(phone string) string {
	if country := InferCountryFromPhone(phone); country != nil {
		return country.DefaultTimezone
	}
	return DefaultTimezone
}

// RegionsForPhone returns the region codes to try when parsing a phone
// number. A prefix-matched country comes first so numbers carrying an
// explicit dial code resolve to the right region before fallbacks.
func RegionsForPhone(phone string) []string {
	regions := make([]string, 0, len(Countries))

	matched := InferCountryFromPhone(phone)
	if matched != nil {
		regions = append(regions, matched.Code)
	}

	for _, country := range Countries {
		if matched != nil && country.Code == matched.Code {
			continue
		}
		regions = append(regions, country.Code)
	}

	return regions
}

package sanitizer

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"pitchside/pkg/locale"
)

// NormalizePhone parses a phone number against the supported dial
// regions and returns it in E.164 form, or "" when no region accepts
// it.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	if phone == "" {
		return ""
	}

	for _, region := range locale.RegionsForPhone(phone) {
		parsedNumber, err := phonenumbers.Parse(phone, region)
		if err == nil {
			return phonenumbers.Format(parsedNumber, phonenumbers.E164)
		}
	}
	return ""
}

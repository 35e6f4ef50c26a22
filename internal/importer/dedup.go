package importer

import (
	"strings"
	"unicode"

	"github.com/mmcdole/rolo/internal/domain"
)

// normalizeName lower-cases and collapses runs of whitespace
func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func makeKey(name, email, phone string) string {
	key := normalizeName(name)
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		return key + "|" + email
	}
	if d := digits(phone); d != "" {
		return key + "|" + d
	}
	return key
}

// recordKey is the dedup key of a parsed card: name with email, else name
// with the first phone's digits, else the name alone
func recordKey(rec domain.ImportRecord) string {
	phone := ""
	if len(rec.Phones) > 0 {
		phone = rec.Phones[0].Number
	}
	return makeKey(rec.Name, rec.Email, phone)
}

// keySet holds the dedup keys of known contacts and of cards already
// accepted in the batch
type keySet struct {
	keys map[string]struct{}

	// Names of known contacts with no email whose phones were not loaded.
	// Any email-less card with the same name matches them.
	bareNames map[string]struct{}
}

// newKeySet indexes known contacts. A contact with an email contributes
// its email key. Without an email it contributes one key per phone, the
// name key when it has no phones, or a bare name entry when its phones
// are unknown (nil, as in summaries).
func newKeySet(contacts []domain.ContactDetail) *keySet {
	ks := &keySet{
		keys:      make(map[string]struct{}, len(contacts)),
		bareNames: make(map[string]struct{}),
	}
	for _, c := range contacts {
		email := c.EmailOrEmpty()
		switch {
		case email != "":
			ks.keys[makeKey(c.Name, email, "")] = struct{}{}
		case c.Phones == nil:
			ks.bareNames[normalizeName(c.Name)] = struct{}{}
		case len(c.Phones) == 0:
			ks.keys[makeKey(c.Name, "", "")] = struct{}{}
		default:
			for _, p := range c.Phones {
				ks.keys[makeKey(c.Name, "", p.Number)] = struct{}{}
			}
		}
	}
	return ks
}

// contains reports whether rec matches a known contact or an earlier card
func (ks *keySet) contains(rec domain.ImportRecord) bool {
	if _, ok := ks.keys[recordKey(rec)]; ok {
		return true
	}
	if strings.TrimSpace(rec.Email) != "" {
		return false
	}
	_, ok := ks.bareNames[normalizeName(rec.Name)]
	return ok
}

// add records an accepted card
func (ks *keySet) add(rec domain.ImportRecord) {
	ks.keys[recordKey(rec)] = struct{}{}
}

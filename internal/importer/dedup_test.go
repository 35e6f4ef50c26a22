package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmcdole/rolo/internal/domain"
)

func TestRecordKey(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.ImportRecord
		want string
	}{
		{
			name: "name and email",
			rec:  domain.ImportRecord{Name: "  Jane\tDoe ", Email: "Jane@X.com"},
			want: "jane doe|jane@x.com",
		},
		{
			name: "first phone digits without email",
			rec: domain.ImportRecord{Name: "Bob", Phones: []domain.ImportPhone{
				{Number: "+1 (555) 010-0100"}, {Number: "555-9999"},
			}},
			want: "bob|15550100100",
		},
		{
			name: "name only",
			rec:  domain.ImportRecord{Name: "Solo"},
			want: "solo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recordKey(tt.rec))
		})
	}
}

func TestKeySetIndexesKnownContacts(t *testing.T) {
	ks := newKeySet([]domain.ContactDetail{
		{ContactSummary: domain.ContactSummary{Name: "Ann", Email: domain.StringPtr("ann@example.com")},
			Phones: []domain.PhoneNumber{{Number: "555-0001"}}},
		{ContactSummary: domain.ContactSummary{Name: "Bob"},
			Phones: []domain.PhoneNumber{{Number: "555-0002"}, {Number: "555-0003"}}},
		{ContactSummary: domain.ContactSummary{Name: "Cy"}, Phones: []domain.PhoneNumber{}},
		{ContactSummary: domain.ContactSummary{Name: "Dee  Summary"}},
	})

	assert.Len(t, ks.keys, 4)
	assert.Contains(t, ks.keys, "ann|ann@example.com")
	assert.Contains(t, ks.keys, "bob|5550002")
	assert.Contains(t, ks.keys, "bob|5550003")
	assert.Contains(t, ks.keys, "cy")
	assert.Contains(t, ks.bareNames, "dee summary")
}

func TestKeySetContains(t *testing.T) {
	ks := newKeySet([]domain.ContactDetail{
		{ContactSummary: domain.ContactSummary{Name: "Bob"}, Phones: []domain.PhoneNumber{{Number: "555-0002"}}},
		{ContactSummary: domain.ContactSummary{Name: "Dee Summary"}},
	})

	phone := func(n string) []domain.ImportPhone { return []domain.ImportPhone{{Number: n}} }

	assert.True(t, ks.contains(domain.ImportRecord{Name: "bob", Phones: phone("(555) 0002")}))
	assert.False(t, ks.contains(domain.ImportRecord{Name: "Bob", Phones: phone("555-0009")}))

	// Phones of a summary-only contact are unknown, so the name decides
	assert.True(t, ks.contains(domain.ImportRecord{Name: "Dee Summary", Phones: phone("555-0150")}))
	assert.True(t, ks.contains(domain.ImportRecord{Name: "dee summary"}))
	assert.False(t, ks.contains(domain.ImportRecord{Name: "Dee Summary", Email: "dee@example.com"}))

	rec := domain.ImportRecord{Name: "New", Phones: phone("555-0100")}
	assert.False(t, ks.contains(rec))
	ks.add(rec)
	assert.True(t, ks.contains(rec))
}

package models

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    EntityType
		wantErr bool
	}{
		{"price", "PRICE_QUERY", EntityPriceQuery, false},
		{"profile", "PROFILE_UPDATE", EntityProfileUpdate, false},
		{"availability", "CROP_AVAILABILITY", EntityCropAvailability, false},
		{"advisory", "ADVISORY_REQUEST", EntityAdvisoryRequest, false},
		{"lowercase", "price_query", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntityType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultPriority(t *testing.T) {
	assert.Equal(t, PriorityCritical, DefaultPriority(EntityPriceQuery))
	assert.Equal(t, PriorityCritical, DefaultPriority(EntityCropAvailability))
	assert.Equal(t, PriorityNormal, DefaultPriority(EntityProfileUpdate))
	assert.Equal(t, PriorityNormal, DefaultPriority(EntityAdvisoryRequest))
}

func TestChangeRecord_Less(t *testing.T) {
	records := []*ChangeRecord{
		{ChangeID: "advisory", Priority: PriorityNormal, ClientTimestamp: 1, Seq: 1},
		{ChangeID: "price-late", Priority: PriorityCritical, ClientTimestamp: 5, Seq: 2},
		{ChangeID: "profile", Priority: PriorityNormal, ClientTimestamp: 1, Seq: 0},
		{ChangeID: "price-early", Priority: PriorityCritical, ClientTimestamp: 3, Seq: 3},
		{ChangeID: "avail", Priority: PriorityCritical, ClientTimestamp: 5, Seq: 4},
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Less(records[j]) })

	var ids []string
	for _, r := range records {
		ids = append(ids, r.ChangeID)
	}
	assert.Equal(t, []string{"price-early", "price-late", "avail", "profile", "advisory"}, ids)
}

func TestChangeRecord_Clone(t *testing.T) {
	orig := &ChangeRecord{ChangeID: "c1", Payload: []byte(`{"a":1}`)}
	clone := orig.Clone()

	clone.Payload[0] = 'X'
	clone.ChangeID = "c2"

	assert.Equal(t, "c1", orig.ChangeID)
	assert.Equal(t, byte('{'), orig.Payload[0])
}

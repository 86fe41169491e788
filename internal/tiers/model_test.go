package tiers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimit_Allows(t *testing.T) {
	tests := []struct {
		name  string
		limit Limit
		used  uint32
		want  bool
	}{
		{"unlimited always allows", Unlimited(), 1 << 20, true},
		{"below limit", LimitOf(5), 4, true},
		{"at limit", LimitOf(5), 5, false},
		{"above limit", LimitOf(5), 6, false},
		{"explicit zero allows nothing", LimitOf(0), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.limit.Allows(tt.used))
		})
	}
}

func TestLimit_StoredRoundTrip(t *testing.T) {
	assert.Equal(t, int32(0), Unlimited().Stored())
	assert.Equal(t, int32(7), LimitOf(7).Stored())

	assert.True(t, LimitFromStored(0).IsUnlimited())
	assert.True(t, LimitFromStored(-1).IsUnlimited())

	n, ok := LimitFromStored(7).Value()
	require.True(t, ok)
	assert.Equal(t, uint32(7), n)
}

func TestLimit_JSONUsesZeroAsUnlimited(t *testing.T) {
	data, err := json.Marshal(Unlimited())
	require.NoError(t, err)
	assert.Equal(t, "0", string(data))

	var l Limit
	require.NoError(t, json.Unmarshal([]byte("9"), &l))
	assert.False(t, l.IsUnlimited())
	assert.True(t, l.Allows(8))
	assert.False(t, l.Allows(9))
}

func TestParseTier(t *testing.T) {
	for _, valid := range []string{"FREE", "PLUS", "ADMIN"} {
		_, err := ParseTier(valid)
		assert.NoError(t, err)
	}

	_, err := ParseTier("free")
	assert.Error(t, err, "tiers are case sensitive")
	_, err = ParseTier("ENTERPRISE")
	assert.Error(t, err)
}

func TestConservativeDefault_IsTight(t *testing.T) {
	p := ConservativeDefault(TierFree)
	assert.False(t, p.MaxActivities.IsUnlimited())
	assert.False(t, p.MaxGenerations.IsUnlimited())
	assert.False(t, p.MaxFollowupGenerations.IsUnlimited())
	assert.True(t, p.IncludeFollowupsInCount)
}

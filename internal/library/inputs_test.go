package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/capscreen/internal/model"
)

func TestMasterInputs_UniqueKeys(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range MasterInputs {
		assert.False(t, seen[k.Key], "duplicate key %s", k.Key)
		seen[k.Key] = true
	}
	assert.Len(t, MasterInputs, 19)
}

func TestMasterInputs_CategoryCoverage(t *testing.T) {
	counts := map[string]int{}
	for _, k := range MasterInputs {
		counts[k.Category]++
	}
	assert.Equal(t, 4, counts[CategoryStructural])
	assert.Equal(t, 4, counts[CategoryCost])
	assert.Equal(t, 4, counts[CategorySchedule])
	assert.Equal(t, 4, counts[CategoryUrban])
	assert.Equal(t, 3, counts[CategoryPolitical])
}

func TestPlaceholderInputs(t *testing.T) {
	rows := PlaceholderInputs("seg-1")
	require.Len(t, rows, len(MasterInputs))
	for _, in := range rows {
		assert.Equal(t, "seg-1", in.SegmentID)
		assert.Equal(t, model.InputValueUnknown, in.Value)
		assert.Equal(t, model.InputValueUnknown, in.Confidence)
		assert.Equal(t, model.InputSourceSystem, in.Source)
	}
}

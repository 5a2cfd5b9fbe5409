package leosim

import (
	"bytes"
	"encoding/csv"
	"testing"

	kitlog "github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResults(t *testing.T) {
	sim, err := hubSpokeScenario(20).Build(kitlog.NewNopLogger())
	require.NoError(t, err)
	sim.Run()

	var buf bytes.Buffer
	require.NoError(t, WriteResults(&buf, sim))

	r := csv.NewReader(bytes.NewReader(buf.Bytes()))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)

	require.Equal(t, scalarHeader, rows[0])
	// One scalar row per node: three satellites, two stations.
	require.Equal(t, []string{"node", "vector", "samples"}, rows[6])
	assert.Equal(t, "sat-1", rows[1][0])
	assert.Equal(t, "satellite", rows[1][1])
	assert.Equal(t, "gs-101", rows[4][0])
	assert.Equal(t, "ground", rows[4][1])

	// The sink station carries both metric vectors.
	var vectors []string
	for _, row := range rows[7:] {
		if row[0] == "gs-102" {
			vectors = append(vectors, row[1])
		}
	}
	assert.Equal(t, []string{"endToEndDelay", "hopCount"}, vectors)
}

func TestDeliveryRatioIdle(t *testing.T) {
	st := newNodeStats()
	assert.Equal(t, 1.0, st.DeliveryRatio(0), "idle nodes report a perfect ratio")
	st.drop(DropNoRoute)
	assert.Equal(t, 0.0, st.DeliveryRatio(0))
	st.Received = 3
	assert.InDelta(t, 0.75, st.DeliveryRatio(st.Received), 1e-12)
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package coordmetrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSimulation_IncrementsCounterByOutcomeLabel(t *testing.T) {
	m := NewMetrics()
	m.ObserveSimulation("send_packet", 3)
	m.ObserveSimulation("send_packet", 5)
	m.ObserveSimulation("no_op", 1)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("send_packet")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("no_op")))
}

func TestObserveSimulation_RecordsDevicesTraversedSampleCount(t *testing.T) {
	m := NewMetrics()
	m.ObserveSimulation("send_packet", 3)
	m.ObserveSimulation("send_packet", 5)

	var out dto.Metric
	require.NoError(t, m.DevicesTraversed.Write(&out))
	assert.Equal(t, uint64(2), out.GetHistogram().GetSampleCount())
	assert.Equal(t, float64(8), out.GetHistogram().GetSampleSum())
}

func TestObserveLoopDetection_IncrementsCounter(t *testing.T) {
	m := NewMetrics()
	m.ObserveLoopDetection()
	m.ObserveLoopDetection()
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LoopDetections))
}

func TestObserveForkMerge_SplitsByCompatibility(t *testing.T) {
	m := NewMetrics()
	m.ObserveForkMerge(true)
	m.ObserveForkMerge(true)
	m.ObserveForkMerge(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ForkMerges.WithLabelValues("true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ForkMerges.WithLabelValues("false")))
}

func TestObserveTopologyFetchError_LabelsByDeviceKind(t *testing.T) {
	m := NewMetrics()
	m.ObserveTopologyFetchError("bridge")
	m.ObserveTopologyFetchError("bridge")
	m.ObserveTopologyFetchError("router")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TopologyFetchErrors.WithLabelValues("bridge")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TopologyFetchErrors.WithLabelValues("router")))
}

func TestObserveTopologyFetchLatency_RecordsSample(t *testing.T) {
	m := NewMetrics()
	m.ObserveTopologyFetchLatency(0.25)

	var out dto.Metric
	require.NoError(t, m.TopologyFetchLatency.Write(&out))
	assert.Equal(t, uint64(1), out.GetHistogram().GetSampleCount())
}

func TestCollect_EmitsAllRegisteredMetricFamilies(t *testing.T) {
	m := NewMetrics()
	m.ObserveSimulation("send_packet", 1)
	m.ObserveForkMerge(true)
	m.ObserveTopologyFetchError("bridge")
	assert.Equal(t, 6, testutil.CollectAndCount(m))
}

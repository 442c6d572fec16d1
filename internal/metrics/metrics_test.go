package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsInitialization(t *testing.T) {
	assert.NotNil(t, VectorsGeneratedTotal)
	assert.NotNil(t, SamplingDrawsTotal)
	assert.NotNil(t, ChaosEventsTotal)
	assert.NotNil(t, ChaosBytesTouchedTotal)
	assert.NotNil(t, IntegrityChecksTotal)
	assert.NotNil(t, IntegrityAnomaliesTotal)
	assert.NotNil(t, TransportDecodeErrorsTotal)
	assert.NotNil(t, TransportDecodeBytesTotal)
	assert.NotNil(t, PoolOperationsTotal)
	assert.NotNil(t, CampaignSeedDurationSeconds)
	assert.NotNil(t, CampaignSeedsTotal)
}

func TestCounterVecLabels(t *testing.T) {
	before := testutil.ToFloat64(ChaosEventsTotal.WithLabelValues("bitflip"))
	ChaosEventsTotal.WithLabelValues("bitflip").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(ChaosEventsTotal.WithLabelValues("bitflip")))
}

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/factory"
	coremetrics "github.com/kilianp07/fleetdispatch/core/metrics"
)

func TestInfluxSinkFactory(t *testing.T) {
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"org": "fleet"}}})
	assert.ErrorContains(t, err, "url and bucket are required")

	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": "http://127.0.0.1:1", "bucket": "fleet", "strict": true,
	}}})
	require.NoError(t, err)
	sink, ok := s.(*InfluxSink)
	require.True(t, ok, "got %T", s)
	sink.Close()
}

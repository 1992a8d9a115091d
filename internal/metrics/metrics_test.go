package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (suite *MetricsTestSuite) TestRegister() {
	reg := prometheus.NewRegistry()

	m, err := NewMetrics(reg)
	suite.Require().NoError(err)

	m.CellFailures.WithLabelValues("indicator:system/ratio", "domain").Inc()
	m.CacheBatches.WithLabelValues("daily", "hit").Add(2)

	suite.Equal(1.0, testutil.ToFloat64(m.CellFailures.WithLabelValues("indicator:system/ratio", "domain")))
	suite.Equal(2.0, testutil.ToFloat64(m.CacheBatches.WithLabelValues("daily", "hit")))

	families, err := reg.Gather()
	suite.NoError(err)
	suite.Len(families, 2)
}

func (suite *MetricsTestSuite) TestDoubleRegisterFails() {
	reg := prometheus.NewRegistry()

	_, err := NewMetrics(reg)
	suite.Require().NoError(err)

	_, err = NewMetrics(reg)
	suite.Error(err)
}

func (suite *MetricsTestSuite) TestNop() {
	m := NewNopMetrics()
	suite.NotNil(m.RemoteFetches)
	m.RemoteFetches.WithLabelValues("daily").Inc()
	suite.Equal(1.0, testutil.ToFloat64(m.RemoteFetches.WithLabelValues("daily")))
}

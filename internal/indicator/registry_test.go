package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-dataprep/internal/types"
	"github.com/rxtech-lab/argo-dataprep/pkg/errors"
)

// mockIndicator is a simple mock indicator for testing the registry
type mockIndicator struct {
	name   types.IndicatorType
	window int
}

func newMockFactory(name types.IndicatorType) Factory {
	return func() Indicator {
		return &mockIndicator{name: name}
	}
}

func (m *mockIndicator) Name() types.IndicatorType {
	return m.name
}

func (m *mockIndicator) Arity() int {
	return 1
}

func (m *mockIndicator) Lookback() int {
	return 1
}

func (m *mockIndicator) Config(params ...any) error {
	m.window = params[0].(int)
	return nil
}

func (m *mockIndicator) RawValue(inputs ...[]float64) (float64, error) {
	return 0, nil
}

type RegistryTestSuite struct {
	suite.Suite
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (suite *RegistryTestSuite) TestNewIndicatorRegistry() {
	registry := NewIndicatorRegistry()
	suite.NotNil(registry)
	suite.Empty(registry.ListIndicators())
}

func (suite *RegistryTestSuite) TestRegisterIndicator() {
	registry := NewIndicatorRegistry()

	err := registry.RegisterIndicator("custom", newMockFactory("custom"))
	suite.NoError(err)

	// Verify the indicator is registered
	retrieved, err := registry.GetIndicator("custom")
	suite.NoError(err)
	suite.Equal(types.IndicatorType("custom"), retrieved.Name())
	suite.True(registry.HasIndicator("custom"))
}

func (suite *RegistryTestSuite) TestRegisterIndicatorDuplicate() {
	registry := NewIndicatorRegistry()

	err := registry.RegisterIndicator("custom", newMockFactory("custom"))
	suite.NoError(err)

	// Trying to register another indicator with the same name should fail
	err = registry.RegisterIndicator("custom", newMockFactory("custom"))
	suite.Error(err)
	suite.Contains(err.Error(), "already registered")

	err = registry.RegisterIndicator("other", nil)
	suite.Error(err)
}

func (suite *RegistryTestSuite) TestGetIndicatorReturnsFreshInstances() {
	registry := NewIndicatorRegistry()
	suite.Require().NoError(registry.RegisterIndicator("custom", newMockFactory("custom")))

	first, err := registry.GetIndicator("custom")
	suite.Require().NoError(err)
	suite.Require().NoError(first.Config(30))

	second, err := registry.GetIndicator("custom")
	suite.Require().NoError(err)
	suite.Equal(0, second.(*mockIndicator).window)
	suite.Equal(30, first.(*mockIndicator).window)
}

func (suite *RegistryTestSuite) TestGetIndicatorNotFound() {
	registry := NewIndicatorRegistry()

	_, err := registry.GetIndicator(types.IndicatorTypeSum)
	suite.Error(err)
	suite.Contains(err.Error(), "not found")
	suite.True(errors.HasCode(err, errors.ErrCodeIndicatorNotFound))
	suite.False(registry.HasIndicator(types.IndicatorTypeSum))
}

func (suite *RegistryTestSuite) TestListIndicators() {
	registry := NewDefaultRegistry()

	indicators := registry.ListIndicators()
	suite.Len(indicators, 10)
	suite.Contains(indicators, types.IndicatorTypeHistoricalVolatility)
	suite.Contains(indicators, types.IndicatorTypeRatio)
	suite.IsIncreasing(indicators)
}

func (suite *RegistryTestSuite) TestDefaultRegistryNames() {
	registry := NewDefaultRegistry()

	for _, name := range registry.ListIndicators() {
		ind, err := registry.GetIndicator(name)
		suite.Require().NoError(err)
		suite.Equal(name, ind.Name())
	}
}

func (suite *RegistryTestSuite) TestRemoveIndicator() {
	registry := NewDefaultRegistry()

	err := registry.RemoveIndicator(types.IndicatorTypeSum)
	suite.NoError(err)

	// Should no longer be found
	_, err = registry.GetIndicator(types.IndicatorTypeSum)
	suite.Error(err)

	// Removing twice fails
	err = registry.RemoveIndicator(types.IndicatorTypeSum)
	suite.Error(err)
	suite.Contains(err.Error(), "not found")
}

func (suite *RegistryTestSuite) TestConcurrentAccess() {
	registry := NewIndicatorRegistry()

	// Test concurrent registration
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(idx int) {
			name := types.IndicatorType(string(rune('A' + idx)))
			_ = registry.RegisterIndicator(name, newMockFactory(name))
			done <- true
		}(i)
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}

	// Should have 10 indicators
	suite.Len(registry.ListIndicators(), 10)
}

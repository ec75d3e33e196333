package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BaseStrategy provides the name/parameter plumbing shared by concrete
// strategies. Embed it and override what the strategy actually needs.
type BaseStrategy struct {
	name       string
	parameters map[string]interface{}
	warmup     int
}

// NewBaseStrategy creates a new base strategy
func NewBaseStrategy(name string, parameters map[string]interface{}) *BaseStrategy {
	if parameters == nil {
		parameters = map[string]interface{}{}
	}
	return &BaseStrategy{
		name:       name,
		parameters: parameters,
	}
}

// Name returns the strategy name
func (s *BaseStrategy) Name() string {
	return s.name
}

// Parameters returns the strategy parameters
func (s *BaseStrategy) Parameters() map[string]interface{} {
	return s.parameters
}

// SetWarmupBars sets how much pre-start history the strategy requests.
func (s *BaseStrategy) SetWarmupBars(bars int) {
	s.warmup = bars
}

// WarmupBars returns the requested warm-up bar count.
func (s *BaseStrategy) WarmupBars() int {
	return s.warmup
}

// Initialize provides a default no-op initialization.
func (s *BaseStrategy) Initialize(ctx *Context) error {
	logger := ctx.Logger()
	logger.Info().
		Str("strategy", s.name).
		Interface("parameters", s.parameters).
		Msg("Strategy initialized")
	return nil
}

// ParameterInt returns a parameter as int
func (s *BaseStrategy) ParameterInt(key string) (int, error) {
	val, ok := s.parameters[key]
	if !ok {
		return 0, fmt.Errorf("parameter %s not found", key)
	}

	switch v := val.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("parameter %s is not an integer", key)
	}
}

// ParameterDecimal returns a parameter as a decimal
func (s *BaseStrategy) ParameterDecimal(key string) (decimal.Decimal, error) {
	val, ok := s.parameters[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("parameter %s not found", key)
	}

	switch v := val.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("parameter %s is not a number", key)
	}
}

// ParameterString returns a parameter as string
func (s *BaseStrategy) ParameterString(key string) (string, error) {
	val, ok := s.parameters[key]
	if !ok {
		return "", fmt.Errorf("parameter %s not found", key)
	}

	if str, ok := val.(string); ok {
		return str, nil
	}

	return "", fmt.Errorf("parameter %s is not a string", key)
}

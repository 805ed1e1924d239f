// internal/service/promotion/infrastructure/rule/cel_engine_test.go
package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localcart/internal/service/promotion/domain"
)

func TestEvaluate(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	fact := domain.Fact{OrderAmount: 120, ItemCount: 2, UserID: 7}

	tests := []struct {
		name       string
		expression string
		want       bool
		wantErr    bool
	}{
		{"empty expression passes", "", true, false},
		{"amount threshold met", "order_amount >= 100.0", true, false},
		{"amount threshold not met", "order_amount >= 500.0", false, false},
		{"combined conditions", "order_amount >= 100.0 && item_count >= 2", true, false},
		{"item count too low", "item_count > 2", false, false},
		{"user filter", "user_id == 7", true, false},
		{"syntax error", "order_amount >=", false, true},
		{"non-bool result", "order_amount + 1.0", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(tt.expression, fact)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateCachesPrograms(t *testing.T) {
	engine, err := NewCELRuleEngine()
	require.NoError(t, err)

	const expr = "order_amount >= 50.0"
	_, err = engine.Evaluate(expr, domain.Fact{OrderAmount: 60})
	require.NoError(t, err)

	engine.mu.RLock()
	_, cached := engine.programs[expr]
	engine.mu.RUnlock()
	assert.True(t, cached)

	// 缓存命中后再评估仍然给出正确结果
	ok, err := engine.Evaluate(expr, domain.Fact{OrderAmount: 10})
	require.NoError(t, err)
	assert.False(t, ok)
}

package payout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeeCalculator_Calculate(t *testing.T) {
	calc := NewFeeCalculator(0.05)

	t.Run("round figures", func(t *testing.T) {
		b, err := calc.Calculate(1000)
		require.NoError(t, err)
		require.Equal(t, 50.0, b.Fee)
		require.Equal(t, 950.0, b.Net)
	})

	t.Run("rounding applied once on full precision", func(t *testing.T) {
		// 1234.56 * 0.05 = 61.728 -> 61.73; 1234.56 * 0.95 = 1172.832 -> 1172.83.
		// Note fee + net may differ from gross by a cent; each figure rounds
		// independently instead of one being derived from the other.
		b, err := calc.Calculate(1234.56)
		require.NoError(t, err)
		require.Equal(t, 61.73, b.Fee)
		require.Equal(t, 1172.83, b.Net)
	})

	t.Run("half cents round up", func(t *testing.T) {
		// 100.10 * 0.05 = 5.005 -> 5.01
		b, err := calc.Calculate(100.10)
		require.NoError(t, err)
		require.Equal(t, 5.01, b.Fee)
		require.Equal(t, 95.09, b.Net)
	})

	t.Run("zero amount", func(t *testing.T) {
		b, err := calc.Calculate(0)
		require.NoError(t, err)
		require.Zero(t, b.Fee)
		require.Zero(t, b.Net)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		_, err := calc.Calculate(-1)
		require.Error(t, err)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := calc.Calculate(333.33)
		require.NoError(t, err)
		for i := 0; i < 100; i++ {
			again, err := calc.Calculate(333.33)
			require.NoError(t, err)
			require.Equal(t, first, again)
		}
	})
}

func TestFeeCalculator_DefaultRate(t *testing.T) {
	require.Equal(t, DefaultFeeRate, NewFeeCalculator(0).Rate())
	require.Equal(t, 0.1, NewFeeCalculator(0.1).Rate())
}

package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in      string
		cents   int64
		wantErr error
	}{
		{"45.50", 4550, nil},
		{"45.5", 4550, nil},
		{"300", 30000, nil},
		{" 0.01 ", 1, nil},
		{"45.500", 4550, nil},
		{"0", 0, nil},
		{"-3.10", -310, nil},
		{"1.005", 0, ErrTooManyDecimals},
		{"99999999.99", 9999999999, nil},
		{"100000000", 0, ErrTooManyDigits},
		{"abc", 0, ErrInvalidAmount},
		{"", 0, ErrInvalidAmount},
		{"1e2", 10000, nil},
		{"4550e-2", 4550, nil},
		{"0e999999999", 0, nil},
		{"1e999999999", 0, ErrTooManyDigits},
		{"1e-999999999", 0, ErrTooManyDecimals},
		{"-1e999999999", 0, ErrTooManyDigits},
		{"1e11", 0, ErrTooManyDigits},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMoney(tc.in)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cents, got.Cents)
		})
	}
}

func TestMoneyFromDecimal(t *testing.T) {
	m, err := MoneyFromDecimal(decimal.RequireFromString("12.3"))
	require.NoError(t, err)
	assert.Equal(t, int64(1230), m.Cents)
	assert.Equal(t, "12.30", m.String())
	assert.True(t, m.IsPositive())
}

func TestMoneyMessage(t *testing.T) {
	assert.Equal(t, MsgTooManyDecimals, MoneyMessage(ErrTooManyDecimals))
	assert.Equal(t, MsgTooManyDigits, MoneyMessage(ErrTooManyDigits))
	assert.Equal(t, MsgInvalidNumber, MoneyMessage(ErrInvalidAmount))
}

package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendstack/vendingmachine/internal/domain/money"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "zero", value: "0"},
		{name: "two decimal places", value: "10.50"},
		{name: "max valid", value: "99.99"},
		{name: "negative", value: "-0.01", wantErr: true},
		{name: "three decimal places", value: "1.005", wantErr: true},
		{name: "too large", value: "100.00", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tc.value)
			require.NoError(t, err)

			err = money.Validate(d)
			if tc.wantErr {
				assert.ErrorIs(t, err, money.ErrInvalidAmount)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	d, err := money.Parse("2.50")
	require.NoError(t, err)
	assert.Equal(t, "2.50", money.Format(d))

	_, err = money.Parse("not a number")
	assert.ErrorIs(t, err, money.ErrInvalidAmount)

	_, err = money.Parse("-1.00")
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.00", money.Format(money.Zero()))
	assert.Equal(t, "3.10", money.Format(decimal.RequireFromString("3.1")))
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampPrecision(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		roundUp bool
		want    string
	}{
		{name: "empty", amount: "", want: ""},
		{name: "integer untouched", amount: "32", want: "32"},
		{name: "integer with leading zero untouched", amount: "032", want: "032"},
		{name: "trailing dot untouched", amount: "32.", want: "32."},
		{name: "one digit", amount: "1.5", want: "1.5"},
		{name: "trailing zeros kept", amount: "1.500", want: "1.500"},
		{name: "nine digits", amount: "0.000000001", want: "0.000000001"},
		{name: "truncate", amount: "1.1234567891", want: "1.123456789"},
		{name: "truncate ignores roundUp digit", amount: "1.1234567899", want: "1.123456789"},
		{name: "round up", amount: "32.9999999999", roundUp: true, want: "33.000000000"},
		{name: "round up small remainder", amount: "1.0000000001", roundUp: true, want: "1.000000001"},
		{name: "round up exact value", amount: "1.1000000000", roundUp: true, want: "1.100000000"},
		{name: "round down exact value", amount: "2.0000000000000", want: "2.000000000"},
		{name: "not a number", amount: "abc.def", want: "abc.def"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, ClampPrecision(test.amount, test.roundUp))
		})
	}
}

func TestClampPrecisionIdentity(t *testing.T) {
	for _, amount := range []string{"0.1", "0.12", "16.123456789", "2048.000000001", "0.000001"} {
		assert.Equal(t, amount, ClampPrecision(amount, false))
		assert.Equal(t, amount, ClampPrecision(amount, true))
	}
}

func TestEtherToGwei(t *testing.T) {
	gwei, err := EtherToGwei("16")
	require.NoError(t, err)
	assert.Equal(t, uint64(16_000_000_000), gwei)

	gwei, err = EtherToGwei("0.000000001")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gwei)

	gwei, err = EtherToGwei("1.0000000009")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), gwei)

	_, err = EtherToGwei("-1")
	assert.Error(t, err)

	_, err = EtherToGwei("not-a-number")
	assert.Error(t, err)

	_, err = EtherToGwei("100000000000")
	assert.Error(t, err)
}

func TestGWeiToEther(t *testing.T) {
	assert.Equal(t, "32", GWeiUint64ToEther(32_000_000_000).String())
	assert.Equal(t, "0.000000001", GWeiUint64ToEther(1).String())
	assert.Equal(t, "1000000000", GweiToWei(1).String())
}

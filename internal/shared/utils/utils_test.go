package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestIPAllowList(t *testing.T) {
	t.Parallel()

	list, err := NewIPAllowList([]string{"10.0.0.0/8", "203.0.113.7", " 2001:db8::/32 "})
	require.NoError(t, err)

	var tests = []struct {
		ip   string
		want bool
	}{
		{ip: "10.1.2.3", want: true},
		{ip: "203.0.113.7", want: true},
		{ip: "203.0.113.8", want: false},
		{ip: "::ffff:10.0.0.1", want: true},
		{ip: "2001:db8::1", want: true},
		{ip: "not-an-ip", want: false},
		{ip: "", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.ip, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, list.Allows(tt.ip))
		})
	}

	empty, err := NewIPAllowList(nil)
	require.NoError(t, err)
	require.True(t, empty.Allows("198.51.100.1"))

	_, err = NewIPAllowList([]string{"10.0.0.0/99"})
	require.Error(t, err)
}

func TestToPaise(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 49900, ToPaise(decimal.RequireFromString("499")))
	require.EqualValues(t, 1, ToPaise(decimal.RequireFromString("0.005")))
	require.EqualValues(t, 12345, ToPaise(decimal.RequireFromString("123.45")))
}

func TestMarshalTask(t *testing.T) {
	t.Parallel()

	task, err := MarshalTask("payment:notify", map[string]string{"merchant_order_id": "ORD1"})
	require.NoError(t, err)
	require.Equal(t, "payment:notify", task.Type())
	require.JSONEq(t, `{"merchant_order_id":"ORD1"}`, string(task.Payload()))
}

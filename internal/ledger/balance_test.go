package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceDepositAndWithdraw(t *testing.T) {
	b := Zero()
	require.NoError(t, b.Deposit(150))
	assert.Equal(t, int64(150), b.Amount())

	funds, err := b.Withdraw(100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), funds.Amount())
	assert.Equal(t, int64(50), b.Amount())
}

func TestBalanceWithdrawInsufficient(t *testing.T) {
	b := Zero()
	require.NoError(t, b.Deposit(40))

	funds, err := b.Withdraw(41)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Nil(t, funds)
	assert.Equal(t, int64(40), b.Amount(), "failed withdrawal must not change the balance")
}

func TestBalanceRejectsNegativeAmounts(t *testing.T) {
	b := Zero()
	assert.Error(t, b.Deposit(-1))

	_, err := b.Withdraw(-1)
	assert.Error(t, err)
	assert.Equal(t, int64(0), b.Amount())
}

func TestFundsConsumedExactlyOnce(t *testing.T) {
	src := Zero()
	require.NoError(t, src.Deposit(100))
	funds, err := src.Withdraw(60)
	require.NoError(t, err)

	dst := Zero()
	require.NoError(t, dst.Accept(funds))
	assert.Equal(t, int64(60), dst.Amount())

	other := Zero()
	require.Error(t, other.Accept(funds), "funds must not be accepted twice")
	assert.Equal(t, int64(0), other.Amount())
}

func TestTransferConservesValue(t *testing.T) {
	from := Zero()
	to := Zero()
	require.NoError(t, from.Deposit(150))

	require.NoError(t, Transfer(&from, &to, 100))
	assert.Equal(t, int64(50), from.Amount())
	assert.Equal(t, int64(100), to.Amount())
	assert.Equal(t, int64(150), from.Amount()+to.Amount())
}

func TestTransferInsufficientLeavesBothUnchanged(t *testing.T) {
	from := Zero()
	to := Zero()
	require.NoError(t, from.Deposit(30))
	require.NoError(t, to.Deposit(10))

	err := Transfer(&from, &to, 31)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(30), from.Amount())
	assert.Equal(t, int64(10), to.Amount())
}

func TestRestoreRejectsNegative(t *testing.T) {
	_, err := Restore(-5)
	assert.Error(t, err)

	b, err := Restore(500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), b.Amount())
}

func TestBalanceScan(t *testing.T) {
	var b Balance
	require.NoError(t, b.Scan(int64(75)))
	assert.Equal(t, int64(75), b.Amount())

	assert.Error(t, b.Scan(int64(-1)))
	assert.Error(t, b.Scan("75"))

	require.NoError(t, b.Scan(nil))
	assert.Equal(t, int64(0), b.Amount())
}

func TestBalanceJSONRoundTrip(t *testing.T) {
	b, err := Restore(120)
	require.NoError(t, err)

	raw, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, "120", string(raw))

	var decoded Balance
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, int64(120), decoded.Amount())

	assert.Error(t, json.Unmarshal([]byte("-3"), &decoded))
}

func TestBalanceUnmarshalRejectsPartialNumbers(t *testing.T) {
	var b Balance
	assert.Error(t, b.UnmarshalJSON([]byte("12abc")))
	assert.Error(t, b.UnmarshalJSON([]byte(`"12"`)))
	assert.Error(t, b.UnmarshalJSON([]byte("12 34")))
	assert.Equal(t, int64(0), b.Amount(), "rejected input must not change the balance")

	require.NoError(t, b.UnmarshalJSON([]byte("12")))
	assert.Equal(t, int64(12), b.Amount())
}

package ensemble

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiOpValidateEmpty(t *testing.T) {
	m := NewMultiOp()
	assert.Error(t, m.validate())
}

func TestMultiOpValidateCreateNeedsACL(t *testing.T) {
	m := NewMultiOp().Create("/a", []byte("x"), nil, ModeNormal)
	assert.Error(t, m.validate())

	m = NewMultiOp().Create("/a", []byte("x"), OpenUnsafe(), ModeNormal)
	assert.NoError(t, m.validate())
}

func TestMultiOpOpsOrderPreserved(t *testing.T) {
	m := NewMultiOp().
		Check("/a", 0).
		Create("/b", []byte("x"), OpenUnsafe(), ModeNormal).
		Set("/c", []byte("y"), 1).
		Erase("/d", 2)

	ops := m.Ops()
	require.Len(t, ops, 4)
	assert.Equal(t, TxnCheck, ops[0].Kind)
	assert.Equal(t, TxnCreate, ops[1].Kind)
	assert.Equal(t, TxnSet, ops[2].Kind)
	assert.Equal(t, TxnErase, ops[3].Kind)
	assert.Equal(t, 4, m.Len())
}

func TestDecodeMultiReplySuccess(t *testing.T) {
	m := NewMultiOp().Check("/a", 0).Create("/b", []byte("x"), OpenUnsafe(), ModeNormal)
	statuses := []PerOpStatus{{OK: true}, {OK: true}}

	result, err := DecodeMultiReply(m, statuses)
	require.Nil(t, err)
	require.Len(t, result.Results, 2)
	assert.Equal(t, checkResult{}, result.Results[0])
	assert.Equal(t, CreateResult{Name: "/b"}, result.Results[1])
}

func TestDecodeMultiReplyFailure(t *testing.T) {
	m := NewMultiOp().Set("/a", []byte("x"), 0).Erase("/missing", 0)
	statuses := []PerOpStatus{{OK: true}, {OK: false, Kind: KindNoEntry}}

	result, err := DecodeMultiReply(m, statuses)
	require.Nil(t, result)
	require.NotNil(t, err)
	assert.Equal(t, KindTransactionFailed, err.Kind)
	assert.Equal(t, 1, err.FailedIndex)
}

func TestMultiOpGobRoundTrip(t *testing.T) {
	m := NewMultiOp().Check("/a", 3).Create("/b", []byte("payload"), OpenUnsafe(), ModeSequential)

	encoded, err := m.GobEncode()
	require.NoError(t, err)

	decoded := &MultiOp{}
	require.NoError(t, decoded.GobDecode(encoded))

	require.Equal(t, m.Ops(), decoded.Ops())
}

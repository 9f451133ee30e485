package ensemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionRegistryResolveDeliversValue(t *testing.T) {
	r := newCompletionRegistry()
	id, ch := r.register()
	r.resolve(id, completionOutcome{value: 42})

	out := <-ch
	assert.Equal(t, 42, out.value)
	assert.NoError(t, out.err)
}

func TestCompletionRegistryDoubleResolveIsNoop(t *testing.T) {
	r := newCompletionRegistry()
	id, ch := r.register()
	r.resolve(id, completionOutcome{value: 1})
	r.resolve(id, completionOutcome{value: 2}) // must not panic or block

	out := <-ch
	assert.Equal(t, 1, out.value)
}

func TestCompletionRegistryDrainResolvesAllPending(t *testing.T) {
	r := newCompletionRegistry()
	_, ch1 := r.register()
	_, ch2 := r.register()

	n := r.drain(Closed())
	assert.Equal(t, 2, n)

	out1 := <-ch1
	out2 := <-ch2
	assert.Error(t, out1.err)
	assert.Error(t, out2.err)
	assert.Equal(t, 0, r.size())
}

func TestCompletionWaitReturnsTypedValue(t *testing.T) {
	ch := make(chan completionOutcome, 1)
	ch <- completionOutcome{value: GetResult{Data: []byte("x")}}
	close(ch)

	c := newCompletion[GetResult](ch)
	res, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), res.Data)
}

func TestCompletionWaitRespectsContextCancellation(t *testing.T) {
	ch := make(chan completionOutcome)
	c := newCompletion[GetResult](ch)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolvedCompletionReturnsImmediateError(t *testing.T) {
	c := resolvedCompletion[GetResult](InvalidArguments("bad path"))
	_, err := c.Wait(context.Background())
	assert.Error(t, err)
}

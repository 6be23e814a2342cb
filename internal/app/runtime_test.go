package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestRuntimeCloseRunsInReverseAndCombinesErrors(t *testing.T) {
	var order []string
	rt := &Runtime{}
	errFirst := errors.New("first")
	errThird := errors.New("third")
	rt.OnClose(func() error { order = append(order, "first"); return errFirst })
	rt.OnClose(func() error { order = append(order, "second"); return nil })
	rt.OnClose(nil)
	rt.OnClose(func() error { order = append(order, "third"); return errThird })

	err := rt.Close()
	require.Equal(t, []string{"third", "second", "first"}, order)
	require.ErrorIs(t, err, errFirst)
	require.ErrorIs(t, err, errThird)
	require.Len(t, multierr.Errors(err), 2)

	require.NoError(t, rt.Close())
}

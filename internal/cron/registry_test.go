package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	r, err := NewRegistry(namedJob("reconcile"), nil, namedJob("outbox-retention"))
	require.NoError(t, err)
	assert.Equal(t, []string{"reconcile", "outbox-retention"}, r.Names())

	jobs := r.Jobs()
	jobs[0] = nil
	assert.NotNil(t, r.Jobs()[0])
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(namedJob("reconcile"), namedJob("reconcile"))
	assert.EqualError(t, err, `cron job "reconcile" registered twice`)

	var r Registry
	assert.Error(t, r.Register(namedJob("")))
	assert.NoError(t, r.Register(namedJob("x")))
}

package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticResolver(t *testing.T) {
	primary := int64(10)
	secondary := int64(11)

	t.Run("returns configured pair", func(t *testing.T) {
		r := &StaticResolver{Approvers: Approvers{
			PrimaryManagerID:   &primary,
			SecondaryManagerID: &secondary,
		}}

		got, err := r.ResolveApprovers(context.Background(), 1, 99)
		require.NoError(t, err)
		require.NotNil(t, got.PrimaryManagerID)
		assert.Equal(t, primary, *got.PrimaryManagerID)
		require.NotNil(t, got.SecondaryManagerID)
		assert.Equal(t, secondary, *got.SecondaryManagerID)
	})

	t.Run("empty pair means no managers", func(t *testing.T) {
		r := &StaticResolver{}

		got, err := r.ResolveApprovers(context.Background(), 1, 99)
		require.NoError(t, err)
		assert.Nil(t, got.PrimaryManagerID)
		assert.Nil(t, got.SecondaryManagerID)
	})

	t.Run("propagates configured error", func(t *testing.T) {
		boom := errors.New("directory offline")
		r := &StaticResolver{Err: boom}

		_, err := r.ResolveApprovers(context.Background(), 1, 99)
		assert.ErrorIs(t, err, boom)
	})
}

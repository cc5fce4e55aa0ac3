package store

import (
	"context"
	"testing"

	"private-stake-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopJournal(t *testing.T) {
	ctx := context.Background()
	var j OperationJournal = NoopJournal{}

	require.NoError(t, j.RecordOperation(ctx, &models.StakeOperation{Id: "op"}))
	require.NoError(t, j.RecordTransition(ctx, TransitionParams{OperationId: "op", Status: models.StatusFunding}))

	_, err := j.GetOperation(ctx, "op")
	assert.ErrorIs(t, err, ErrOperationNotFound)

	inUse, err := j.NonceInUse(ctx, "owner", 1)
	require.NoError(t, err)
	assert.False(t, inUse)

	saved, err := j.RecordStranded(ctx, models.StrandedFunds{Amount: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), saved.Amount)

	assert.ErrorIs(t, j.ResolveStranded(ctx, "x", "sig"), ErrStrandedNotFound)
	j.Close()
}

func TestAccountPaths(t *testing.T) {
	assert.Equal(t, "owners:abc:private", PrivateAccount("abc"))
	assert.Equal(t, "owners:abc:public", PublicAccount("abc"))
	assert.Equal(t, "burners:xyz", BurnerAccount("xyz"))
	assert.NoError(t, NoopAudit{}.RecordMovement(context.Background(), MovementParams{}))
}

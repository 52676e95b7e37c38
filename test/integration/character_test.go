//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/pawtap/server/internal/domain"
	"github.com/pawtap/server/internal/game"
	"github.com/pawtap/server/internal/repository"
	"github.com/pawtap/server/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterRepo_PendingCreditSurvivesNewerSnapshot(t *testing.T) {
	env := testutil.NewTestEnv(t)
	p := env.LoginTelegram(4001, "far", "")

	ctx := context.Background()
	repo := repository.NewCharacterRepository()
	c, err := repo.FindOrCreate(ctx, env.Pool, p.ID, game.DefaultRules().NewPlayerState(p.ID.String(), domain.CharacterCat))
	require.NoError(t, err)
	require.NotNil(t, c)

	require.NoError(t, repo.AddCoins(ctx, env.Pool, p.ID, 250))
	assert.Equal(t, c.State.Coins+250, testutil.StoredCoins(t, env, p.ID))

	loaded, err := repo.FindOrCreate(ctx, env.Pool, p.ID, c.State)
	require.NoError(t, err)
	assert.Equal(t, c.State.Coins, loaded.State.Coins, "pending credit is not part of the loaded state")

	// A session two revisions ahead that never saw the credit.
	s := c.State
	s.Coins += 2
	applied, err := repo.SaveSnapshot(ctx, env.Pool, p.ID, s, c.Revision+2)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, c.State.Coins+252, testutil.StoredCoins(t, env, p.ID))

	taken, err := repo.TakePendingCoins(ctx, env.Pool, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), taken)
	taken, err = repo.TakePendingCoins(ctx, env.Pool, p.ID)
	require.NoError(t, err)
	assert.Zero(t, taken)

	s.Coins += 250
	applied, err = repo.SaveSnapshot(ctx, env.Pool, p.ID, s, c.Revision+3)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, c.State.Coins+252, testutil.StoredCoins(t, env, p.ID))
}

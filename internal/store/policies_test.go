package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUserCreatesDefaultPolicy(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")

	p, err := db.GetPolicy(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p, "expected default policy")
	assert.Equal(t, DefaultPeriod, p.Period)
}

func TestEnsureUserKeepsExistingPolicy(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "u1")

	_, err := db.SetPolicy(ctx, "u1", "1_month")
	require.NoError(t, err)
	seedUser(t, db, "u1")

	p, _ := db.GetPolicy(ctx, "u1")
	require.NotNil(t, p)
	assert.Equal(t, "1_month", p.Period)
}

func TestEnsureUserEmptyID(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.EnsureUser(context.Background(), ""))
}

func TestGetPolicyMissing(t *testing.T) {
	db := openTestDB(t)

	p, err := db.GetPolicy(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestListPoliciesSkipsKeepForever(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	seedUser(t, db, "a")
	seedUser(t, db, "b")
	seedUser(t, db, "c")

	_, err := db.SetPolicy(ctx, "b", "3_months")
	require.NoError(t, err)
	_, err = db.SetPolicy(ctx, "c", "1_year")
	require.NoError(t, err)

	policies, err := db.ListPolicies(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 2)
	assert.Equal(t, "b", policies[0].OwnerID)
	assert.Equal(t, "c", policies[1].OwnerID)
}

package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurachatapp/aurachat-premium/internal/config"
	"github.com/aurachatapp/aurachat-premium/internal/domain"
)

var testTables = config.DynamoTables{
	PendingVerifications: "pending",
	ConsumedProofs:       "consumed",
	Sessions:             "sessions",
	Customers:            "customers",
}

func newFake() *fakeDynamo {
	return newFakeDynamo(map[string]string{
		testTables.PendingVerifications: fieldEmail,
		testTables.ConsumedProofs:       fieldProofID,
		testTables.Sessions:             fieldToken,
		testTables.Customers:            fieldEmail,
	})
}

func TestPendingRepo_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	repo := NewPendingRepo(f, testTables.PendingVerifications)
	exp := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)

	_, err := repo.Get(ctx, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.Put(ctx, &domain.PendingVerification{
		Email: "a@b.com", CodeHash: "hash", ProofID: "p1", Attempts: 2, ExpiresAt: exp,
	}))

	stored := f.items[testTables.PendingVerifications]["a@b.com"]
	assert.Equal(t, "1772367000", stored[fieldExpiresAt].(*types.AttributeValueMemberN).Value)
	assert.Equal(t, "1772367060", stored[fieldPurgeAt].(*types.AttributeValueMemberN).Value)

	got, err := repo.Get(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.CodeHash)
	assert.Equal(t, "p1", got.ProofID)
	assert.Equal(t, 2, got.Attempts)
	assert.True(t, exp.Equal(got.ExpiresAt))

	require.NoError(t, repo.Delete(ctx, "a@b.com"))
	_, err = repo.Get(ctx, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPendingRepo_PutError(t *testing.T) {
	f := newFake()
	f.failPut = errors.New("throttled")
	err := NewPendingRepo(f, testTables.PendingVerifications).Put(context.Background(), &domain.PendingVerification{Email: "a@b.com"})
	assert.EqualError(t, err, "throttled")
}

func TestPendingRepo_SweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	repo := NewPendingRepo(f, testTables.PendingVerifications)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Put(ctx, &domain.PendingVerification{Email: "old@b.com", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, repo.Put(ctx, &domain.PendingVerification{Email: "new@b.com", ExpiresAt: now.Add(time.Minute)}))

	n, err := repo.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Get(ctx, "old@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.Get(ctx, "new@b.com")
	assert.NoError(t, err)
}

func TestLedgerRepo(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	repo := NewLedgerRepo(f, testTables.ConsumedProofs)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ok, err := repo.Consumed(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Consume(ctx, "p1", now.Add(time.Minute)))
	ok, err = repo.Consumed(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := repo.Sweep(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	ok, _ = repo.Consumed(ctx, "p1")
	assert.False(t, ok)
}

func TestLedgerRepo_RecordFailure(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	repo := NewLedgerRepo(f, testTables.ConsumedProofs)
	exp := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)

	for want := 1; want <= 3; want++ {
		n, err := repo.RecordFailure(ctx, "p1", exp)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	stored := f.items[testTables.ConsumedProofs][failurePrefix+"p1"]
	assert.Equal(t, "1772367000", stored[fieldPurgeAt].(*types.AttributeValueMemberN).Value)

	ok, err := repo.Consumed(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok, "a failure counter is not a consumed proof")

	n, err := repo.Sweep(ctx, exp.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = repo.RecordFailure(ctx, "p1", exp)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSessionRepo(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	repo := NewSessionRepo(f, testTables.Sessions)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := &domain.Session{
		Token: "tok", Email: "a@b.com", PremiumHint: true,
		CreatedAt: created, ExpiresAt: created.Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repo.Put(ctx, sess))

	got, err := repo.Get(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, aws.ToBool(f.lastGet.ConsistentRead), "a session written by verify must be readable at once")
	assert.Equal(t, "a@b.com", got.Email)
	assert.True(t, got.PremiumHint)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	n, err := repo.Sweep(ctx, created.Add(31*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = repo.Get(ctx, "tok")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCustomerRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewCustomerRepo(newFake(), testTables.Customers)

	_, err := repo.GetCustomerID(ctx, "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.PutCustomerID(ctx, "a@b.com", "cus_1"))
	id, err := repo.GetCustomerID(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", id)

	require.NoError(t, repo.PutCustomerID(ctx, "a@b.com", "cus_2"))
	id, _ = repo.GetCustomerID(ctx, "a@b.com")
	assert.Equal(t, "cus_2", id)
}

func TestBootstrap_CreatesTablesAndTTL(t *testing.T) {
	ctx := context.Background()
	f := newFake()
	Bootstrap(ctx, f, testTables, zap.NewNop())

	assert.ElementsMatch(t, []string{"pending", "consumed", "sessions", "customers"}, f.created)
	assert.Equal(t, map[string]string{
		"pending":  fieldPurgeAt,
		"consumed": fieldPurgeAt,
		"sessions": fieldPurgeAt,
	}, f.ttl)

	// Second run hits ResourceInUseException and must not panic.
	Bootstrap(ctx, f, testTables, zap.NewNop())
	assert.Len(t, f.created, 4)
}

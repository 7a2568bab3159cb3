package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTxNilLeavesContextUntouched(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))
	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestQFallsBackToDB(t *testing.T) {
	db := &sql.DB{}
	assert.Same(t, db, Q(context.Background(), db))

	tx := &sql.Tx{}
	assert.Same(t, tx, Q(WithTx(context.Background(), tx), db))
}

func TestRunInTxJoinsExistingTransaction(t *testing.T) {
	outer := WithTx(context.Background(), &sql.Tx{})
	called := false
	err := RunInTx(outer, nil, func(ctx context.Context) error {
		called = true
		got, ok := From(ctx)
		assert.True(t, ok)
		assert.NotNil(t, got)
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

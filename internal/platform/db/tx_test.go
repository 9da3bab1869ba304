package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (b *fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	err := WithTx(context.Background(), &fakeBeginner{tx: tx}, func(context.Context, pgx.Tx) error {
		return nil
	})
	require.NoError(t, err)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	boom := errors.New("boom")
	err := WithTx(context.Background(), &fakeBeginner{tx: tx}, func(context.Context, pgx.Tx) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, tx.committed)
	require.True(t, tx.rolledBack)
}

func TestWithTxPropagatesBeginError(t *testing.T) {
	boom := errors.New("no connection")
	called := false
	err := WithTx(context.Background(), &fakeBeginner{err: boom}, func(context.Context, pgx.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.False(t, called)
}

func TestWithTxPropagatesCommitError(t *testing.T) {
	boom := errors.New("serialization failure")
	tx := &fakeTx{commitErr: boom}
	err := WithTx(context.Background(), &fakeBeginner{tx: tx}, func(context.Context, pgx.Tx) error {
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.True(t, tx.rolledBack)
}

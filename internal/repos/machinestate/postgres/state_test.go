package machinestate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastprodman/gumball/internal/infra/pgtestutil"
	"github.com/fastprodman/gumball/internal/repos/machinestate"
)

func TestMachineState_InitialRowAndUpdates(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New()
	ctx := t.Context()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	s, err := repo.Lock(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, machinestate.State{}, s)

	require.NoError(t, repo.SetActive(ctx, tx, true))
	require.NoError(t, repo.AddSupply(ctx, tx, 700))
	require.NoError(t, repo.AddSupply(ctx, tx, -100))

	s, err = repo.Get(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, machinestate.State{Active: true, TotalSupply: 600}, s)

	require.NoError(t, tx.Commit())
}

// A second Lock on the state row must wait for the first transaction.
func TestMachineState_LockSerializes(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New()

	ctx1, cancel1 := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel1()

	tx1, err := db.BeginTx(ctx1, nil)
	require.NoError(t, err)
	defer func() { _ = tx1.Rollback() }()

	_, err = repo.Lock(ctx1, tx1)
	require.NoError(t, err)

	locked := make(chan machinestate.State, 1)
	errCh := make(chan error, 1)

	go func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()

		tx2, e := db.BeginTx(ctx2, nil)
		if e != nil {
			errCh <- e
			return
		}
		defer func() { _ = tx2.Rollback() }()

		s, e := repo.Lock(ctx2, tx2)
		if e != nil {
			errCh <- e
			return
		}

		locked <- s
	}()

	select {
	case <-locked:
		t.Fatal("second lock acquired while first transaction was open")
	case e := <-errCh:
		t.Fatalf("tx2 error: %v", e)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, repo.AddSupply(ctx1, tx1, 42))
	require.NoError(t, tx1.Commit())

	select {
	case s := <-locked:
		require.Equal(t, int64(42), s.TotalSupply, "second lock sees the committed write")
	case e := <-errCh:
		t.Fatalf("tx2 error: %v", e)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for tx2 after tx1 commit")
	}
}

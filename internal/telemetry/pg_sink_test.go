package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/storefront-realtime/internal/auth"
)

type fakeDB struct {
	execSQL  []string
	batches  []*pgx.Batch
	batchErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b)
	return &fakeResults{remaining: b.Len(), err: f.batchErr}
}

type fakeResults struct {
	remaining int
	err       error
	closed    bool
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	r.remaining--
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error {
	r.closed = true
	return nil
}

func TestPostgresSink_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewPostgresSink(db).EnsureSchema(context.Background()))
	require.Len(t, db.execSQL, 1)
	assert.True(t, strings.Contains(db.execSQL[0], "CREATE TABLE IF NOT EXISTS activity_events"))
}

func TestPostgresSink_DeliverBatch(t *testing.T) {
	db := &fakeDB{}
	sink := NewPostgresSink(db)

	recs := []Record{sampleRecord(), sampleRecord(), sampleRecord()}
	require.NoError(t, sink.DeliverBatch(context.Background(), recs, auth.Credentials{}))

	require.Len(t, db.batches, 1)
	assert.Equal(t, 3, db.batches[0].Len())
	args := db.batches[0].QueuedQueries[0].Arguments
	assert.Equal(t, "sess-1", args[0])
	assert.Equal(t, "add_to_cart", args[2])
	assert.JSONEq(t, `{"productId":"P1"}`, string(args[6].([]byte)))
}

func TestPostgresSink_EmptyBatch(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewPostgresSink(db).DeliverBatch(context.Background(), nil, auth.Credentials{}))
	assert.Empty(t, db.batches)
}

func TestPostgresSink_InsertError(t *testing.T) {
	db := &fakeDB{batchErr: errors.New("relation does not exist")}
	err := NewPostgresSink(db).Deliver(context.Background(), sampleRecord(), auth.Credentials{})
	assert.ErrorContains(t, err, "insert activity")
}

func TestBatcher_UsesBatchSink(t *testing.T) {
	db := &fakeDB{}
	b := newTestBatcher(t, NewPostgresSink(db), nil)

	for i := 0; i < 10; i++ {
		b.Log("e", nil)
	}

	eventually(t, func() bool { return b.Stats().Delivered == 10 })
	assert.Len(t, db.batches, 1)
}

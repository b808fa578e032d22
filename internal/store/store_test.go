package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importCtx() context.Context {
	return core.WithImportContext(context.Background(), core.ImportContext{
		ProjectID:   "proj-1",
		SessionID:   "sess-1",
		RequestedBy: "ops@example.com",
	})
}

var sample = core.ProcessRecord{
	Name:           "Invoice matching",
	Department:     "Finance",
	TimeSpentHours: 12.5,
	Repetitive:     9,
	DataDriven:     7,
	Impact:         8,
	Notes:          "Monthly close",
}

// =============================================================================
// Memory
// =============================================================================

func TestMemoryStore_StampsImportContext(t *testing.T) {
	s := NewMemoryStore()

	id, err := s.Create(importCtx(), sample)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	recs := s.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, id, recs[0].ID)
	assert.Equal(t, "proj-1", recs[0].ProjectID)
	assert.Equal(t, "sess-1", recs[0].SessionID)
	assert.Equal(t, sample, recs[0].ProcessRecord)
	assert.False(t, recs[0].CreatedAt.IsZero())
}

func TestMemoryStore_ConcurrentCreates(t *testing.T) {
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := sample
			rec.Name = fmt.Sprintf("p%d", i)
			_, err := s.Create(context.Background(), rec)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, s.Records(), 50)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Create(ctx, sample)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_Backends(t *testing.T) {
	s, err := Open(context.Background(), config.StoreConfig{Backend: config.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = Open(context.Background(), config.StoreConfig{Backend: "oracle"})
	assert.Error(t, err)
}

// =============================================================================
// SQLite
// =============================================================================

func TestSQLiteStore_CreateAndCount(t *testing.T) {
	ctx := importCtx()
	path := filepath.Join(t.TempDir(), "processes.db")

	s, err := Open(ctx, config.StoreConfig{Backend: config.BackendSQLite, SQLitePath: path, EnsureSchema: true})
	require.NoError(t, err)
	defer s.Close()

	sqlStore := s.(*SQLStore)
	for i := range 3 {
		rec := sample
		rec.Name = fmt.Sprintf("Process %d", i)
		_, err := sqlStore.Create(ctx, rec)
		require.NoError(t, err)
	}

	n, err := sqlStore.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var (
		project string
		score   *int
	)
	require.NoError(t, sqlStore.db.QueryRowContext(ctx,
		"SELECT project_id, rule_based_score FROM processes LIMIT 1").Scan(&project, &score))
	assert.Equal(t, "proj-1", project)
	assert.Nil(t, score, "unset score should be stored as NULL")
}

func TestSQLiteStore_DuplicateIDIsRowLevel(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:", true)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.ExecContext(ctx, sqlInsert, "dup", "p", "s", nil, "A", nil, nil, 0, nil, nil, nil, nil, nil, nil, nil, "2024-01-01")
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, sqlInsert, "dup", "p", "s", nil, "B", nil, nil, 0, nil, nil, nil, nil, nil, nil, nil, "2024-01-01")
	require.Error(t, err)

	classified := s.classify(err)
	assert.False(t, core.IsTransportError(classified))
	assert.Equal(t, "DB001", core.MapError(classified).Code)
}

func TestSQLStore_ClassifyMySQLErrors(t *testing.T) {
	s := &SQLStore{dialect: "mysql"}

	dup := s.classify(&mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry 'x' for key 'PRIMARY'"})
	assert.False(t, core.IsTransportError(dup))
	assert.Equal(t, "DB001", core.MapError(dup).Code)

	conn := s.classify(mysql.ErrInvalidConn)
	assert.True(t, core.IsTransportError(conn))

	other := errors.New("data too long for column")
	assert.Equal(t, other, s.classify(other))
}

// =============================================================================
// Postgres
// =============================================================================

func TestClassifyPgError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transport bool
	}{
		{"server rejection", &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}, false},
		{"dial failure", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"plain error", errors.New("scan failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transport, core.IsTransportError(classifyPgError(tt.err)))
		})
	}
}

func TestPgHelpers(t *testing.T) {
	assert.False(t, ToPgText("  ").Valid)
	assert.Equal(t, "Finance", ToPgText(" Finance ").String)

	n := ToPgNumeric(12.5)
	require.True(t, n.Valid)
	f, err := n.Float64Value()
	require.NoError(t, err)
	assert.InDelta(t, 12.5, f.Float64, 0.0001)

	assert.False(t, ToPgScore(0).Valid)
	assert.False(t, ToPgScore(11).Valid)
	assert.Equal(t, int16(7), ToPgScore(7).Int16)
}

// =============================================================================
// DynamoDB
// =============================================================================

type fakeDynamo struct {
	mu    sync.Mutex
	items []map[string]types.AttributeValue
	err   error
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if aws.ToString(in.TableName) != "processes" {
		return nil, &types.ResourceNotFoundException{Message: aws.String("no table")}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func TestDynamoStore_Create(t *testing.T) {
	client := &fakeDynamo{}
	s := NewDynamoStore(client, "processes")

	id, err := s.Create(importCtx(), sample)
	require.NoError(t, err)
	require.Len(t, client.items, 1)

	item := client.items[0]
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PROJECT#proj-1"}, item["PK"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "PROCESS#" + id}, item["SK"])
	_, hasRuleBased := item["ruleBasedScore"]
	assert.False(t, hasRuleBased, "unset score should be omitted")

	var back dynamoItem
	require.NoError(t, attributevalue.UnmarshalMap(item, &back))
	assert.Equal(t, "Invoice matching", back.Name)
	assert.Equal(t, 9, back.Repetitive)
	assert.Equal(t, "sess-1", back.SessionID)
}

func TestDynamoStore_Errors(t *testing.T) {
	client := &fakeDynamo{err: &types.ConditionalCheckFailedException{Message: aws.String("exists")}}
	_, err := NewDynamoStore(client, "processes").Create(context.Background(), sample)
	require.Error(t, err)
	assert.Equal(t, "DB001", core.MapError(err).Code)

	client.err = &net.OpError{Op: "dial", Err: errors.New("no route to host")}
	_, err = NewDynamoStore(client, "processes").Create(context.Background(), sample)
	assert.True(t, core.IsTransportError(err))

	assert.NoError(t, NewDynamoStore(client, "processes").Ping(context.Background()))
	err = NewDynamoStore(client, "missing").Ping(context.Background())
	assert.ErrorContains(t, err, "not found")
}

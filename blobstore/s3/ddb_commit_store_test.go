package s3

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lineage/blobstore"
)

// mockDDBClient is an in-memory DynamoDB mock for testing.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue // key -> item
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	baseURI := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := baseURI + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baseURI := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == baseURI {
			items = append(items, item)
		}
	}

	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	slices.SortFunc(items, func(a, b map[string]types.AttributeValue) int {
		va, vb := version(a), version(b)
		switch {
		case va > vb:
			return -1
		case va < vb:
			return 1
		}
		return 0
	})

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}

	return &dynamodb.QueryOutput{Items: items}, nil
}

func readCurrent(t *testing.T, store blobstore.BlobStore) string {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), store, CurrentName)
	require.NoError(t, err)
	return string(data)
}

func TestDDBCommitStore_FirstCommit(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "commits", "s3://bucket/run")

	_, err := store.Open(ctx, CurrentName)
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, CurrentName, []byte("ckpt-00000000000000000001.lin")))
	assert.Equal(t, "ckpt-00000000000000000001.lin", readCurrent(t, store))

	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), version)
}

func TestDDBCommitStore_MultipleCommits(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "commits", "s3://bucket/run")

	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Put(ctx, CurrentName, []byte("ckpt-"+strconv.Itoa(i))))
	}

	// Versions compare numerically, so 12 beats 9.
	assert.Equal(t, "ckpt-12", readCurrent(t, store))
	version, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), version)
}

func TestDDBCommitStore_StaleCommit(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "commits", "s3://bucket/run")

	require.NoError(t, store.CommitVersion(ctx, 0, "a"))
	err := store.CommitVersion(ctx, 0, "b")
	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, "a", readCurrent(t, store))
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store := NewDDBCommitStore(blobstore.NewMemoryStore(), newMockDDBClient(), "commits", "s3://bucket/run")

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.CommitVersion(ctx, 0, "w"+strconv.Itoa(i)); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrConcurrentModification)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestDDBCommitStore_PassThrough(t *testing.T) {
	ctx := context.Background()
	mem := blobstore.NewMemoryStore()
	store := NewDDBCommitStore(mem, newMockDDBClient(), "commits", "s3://bucket/run")

	require.NoError(t, store.Put(ctx, "ckpt-1.lin", []byte("data")))
	data, err := blobstore.ReadAll(ctx, mem, "ckpt-1.lin")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	names, err := store.List(ctx, "ckpt-")
	require.NoError(t, err)
	assert.Equal(t, []string{"ckpt-1.lin"}, names)

	require.NoError(t, store.Delete(ctx, "ckpt-1.lin"))
	_, err = store.Open(ctx, "ckpt-1.lin")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBCommitStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMockDDBClient()
	a := NewDDBCommitStore(blobstore.NewMemoryStore(), ddb, "commits", "s3://bucket/a")
	b := NewDDBCommitStore(blobstore.NewMemoryStore(), ddb, "commits", "s3://bucket/b")

	require.NoError(t, a.Put(ctx, CurrentName, []byte("a1")))
	require.NoError(t, a.Put(ctx, CurrentName, []byte("a2")))
	require.NoError(t, b.Put(ctx, CurrentName, []byte("b1")))

	assert.Equal(t, "a2", readCurrent(t, a))
	assert.Equal(t, "b1", readCurrent(t, b))
}

package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lineage/blobstore"
)

func keyIs(key string) func(string) bool {
	return func(k string) bool { return k == key }
}

func TestStore_Open(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "runs/a")

	client.On("HeadObject", mock.Anything, mock.MatchedBy(func(in *s3.HeadObjectInput) bool {
		return aws.ToString(in.Bucket) == "bucket" && aws.ToString(in.Key) == "runs/a/ckpt.lin"
	})).Return(&s3.HeadObjectOutput{ContentLength: aws.Int64(10)}, nil)

	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=2-5"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("2345")))}, nil)

	blob, err := store.Open(ctx, "ckpt.lin")
	require.NoError(t, err)
	defer func() { _ = blob.Close() }()
	assert.Equal(t, int64(10), blob.Size())

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("2345"), buf)

	_, err = blob.ReadAt(ctx, buf, 10)
	assert.ErrorIs(t, err, io.EOF)

	client.AssertExpectations(t)
}

func TestStore_ReadAtTail(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	blob := &s3Blob{client: client, bucket: "bucket", key: "k", size: 6}

	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=4-5"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("45")))}, nil)

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 4)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte("45"), buf[:n])
}

func TestStore_ReadRange(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	blob := &s3Blob{client: client, bucket: "bucket", key: "k", size: 100}

	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Range) == "bytes=90-99"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("0123456789")))}, nil)

	rc, err := blob.ReadRange(ctx, 90, 50)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("0123456789"), data)

	rc, err = blob.ReadRange(ctx, 100, 1)
	require.NoError(t, err)
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestStore_OpenNotFound(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "")

	client.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NotFound{})

	_, err := store.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStore_Put(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "runs")
	data := []byte("CURRENT contents")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return keyIs("runs/CURRENT")(aws.ToString(in.Key)) &&
			aws.ToString(in.ChecksumCRC32C) == computeCRC32C(data) &&
			aws.ToInt64(in.ContentLength) == int64(len(data)) &&
			in.IfNoneMatch == nil
	})).Return(&s3.PutObjectOutput{}, nil)

	require.NoError(t, store.Put(context.Background(), "CURRENT", data))
	client.AssertExpectations(t)
}

func TestStore_PutIfNotExists(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "")

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "new" && aws.ToString(in.IfNoneMatch) == "*"
	})).Return(&s3.PutObjectOutput{}, nil)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "taken"
	})).Return(nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"})
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "broken"
	})).Return(nil, errors.New("network"))

	assert.NoError(t, store.PutIfNotExists(ctx, "new", []byte("x")))
	assert.ErrorIs(t, store.PutIfNotExists(ctx, "taken", []byte("x")), ErrConflict)

	err := store.PutIfNotExists(ctx, "broken", []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestStore_Create(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "runs")

	var uploaded []byte
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "runs/ckpt.lin" && in.ChecksumAlgorithm == types.ChecksumAlgorithmCrc32c
	})).Run(func(args mock.Arguments) {
		in := args.Get(1).(*s3.PutObjectInput)
		uploaded, _ = io.ReadAll(in.Body)
	}).Return(&s3.PutObjectOutput{}, nil)

	w, err := store.Create(context.Background(), "ckpt.lin")
	require.NoError(t, err)
	_, err = w.Write([]byte("snapshot "))
	require.NoError(t, err)
	_, err = w.Write([]byte("bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	assert.Equal(t, []byte("snapshot bytes"), uploaded)
	client.AssertExpectations(t)

	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestStore_CreateAbort(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "")

	w, err := store.Create(context.Background(), "ckpt.lin")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	aborter, ok := w.(blobstore.Aborter)
	require.True(t, ok)
	require.NoError(t, aborter.Abort(context.Background()))

	client.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
	assert.Error(t, w.Close())
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "")

	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "gone"
	})).Return(nil, &types.NoSuchKey{})
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "ckpt"
	})).Return(&s3.DeleteObjectOutput{}, nil)

	assert.NoError(t, store.Delete(ctx, "gone"))
	assert.NoError(t, store.Delete(ctx, "ckpt"))
	client.AssertNumberOfCalls(t, "DeleteObject", 2)
}

func TestStore_ListPaginates(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "runs/a")

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Prefix) == "runs/a/ckpt-" && in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("runs/a/ckpt-2.lin")},
		},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("page-2"),
	}, nil)
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "page-2"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("runs/a/ckpt-1.lin")},
		},
		IsTruncated: aws.Bool(false),
	}, nil)

	names, err := store.List(context.Background(), "ckpt-")
	require.NoError(t, err)
	assert.Equal(t, []string{"ckpt-1.lin", "ckpt-2.lin"}, names)
	client.AssertNumberOfCalls(t, "ListObjectsV2", 2)
}

func TestStore_ListAll(t *testing.T) {
	client := new(MockS3Client)
	store := NewStore(client, "bucket", "runs/a")

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.Prefix) == "runs/a/"
	})).Return(&s3.ListObjectsV2Output{
		Contents:    []types.Object{{Key: aws.String("runs/a/CURRENT")}},
		IsTruncated: aws.Bool(false),
	}, nil)

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CURRENT"}, names)
}

func TestComputeCRC32C(t *testing.T) {
	// CRC32C("123456789") = 0xE3069283
	assert.Equal(t, "4waSgw==", computeCRC32C([]byte("123456789")))
}

package s3

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/editor-bridge/pkg/editorbridge"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed head", &types.NotFound{}, true},
		{"typed get", fmt.Errorf("op: %w", &types.NoSuchKey{}), true},
		{"generic code", &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}, true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"transport", errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFound(tt.err))
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "BucketAlreadyOwnedByYou", errorCode(fmt.Errorf("create: %w", &smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"})))
	assert.Empty(t, errorCode(errors.New("timeout")))
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

// TestBackend_Integration runs against an S3-compatible endpoint such as MinIO
// when EDITORBRIDGE_TEST_S3_ENDPOINT is set.
func TestBackend_Integration(t *testing.T) {
	endpoint := os.Getenv("EDITORBRIDGE_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("EDITORBRIDGE_TEST_S3_ENDPOINT not set")
	}
	ctx := context.Background()
	backend, err := New(ctx, Config{
		Region:                 "us-east-1",
		Bucket:                 "editorbridge-test",
		AccessKeyID:            os.Getenv("EDITORBRIDGE_TEST_S3_ACCESS_KEY"),
		SecretAccessKey:        os.Getenv("EDITORBRIDGE_TEST_S3_SECRET_KEY"),
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	key := "content/objects/te/st_topic.dita"
	data := "<topic/>"
	require.NoError(t, backend.Upload(ctx, key, strings.NewReader(data), int64(len(data)), editorbridge.MimeTypeXML))

	meta, err := backend.GetObjectMeta(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), meta.Size)
	assert.Equal(t, editorbridge.MimeTypeXML, meta.ContentType)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.GetObjectMeta(ctx, key)
	assert.ErrorIs(t, err, editorbridge.ErrObjectNotFound)
}

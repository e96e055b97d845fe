package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsNoSuchKey(t *testing.T) {
	assert.False(t, IsNoSuchKey(nil))
	assert.True(t, IsNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, IsNoSuchKey(fmt.Errorf("stat object: %w", minio.ErrorResponse{Code: "NotFound"})))
	assert.True(t, IsNoSuchKey(errors.New("The specified key does not exist.")))
	assert.False(t, IsNoSuchKey(minio.ErrorResponse{Code: "AccessDenied", Message: "denied"}))
}

func TestParseBucketLookup(t *testing.T) {
	for in, want := range map[string]minio.BucketLookupType{
		"":      minio.BucketLookupAuto,
		"auto":  minio.BucketLookupAuto,
		" DNS ": minio.BucketLookupDNS,
		"path":  minio.BucketLookupPath,
	} {
		got, err := parseBucketLookup(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseBucketLookup("virtual")
	assert.Error(t, err)
}

func TestSessionPrefix(t *testing.T) {
	assert.Equal(t, "attachments/s1/", SessionPrefix("s1"))
}

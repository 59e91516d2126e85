package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3ArchivePut(t *testing.T) {
	fake := &fakeS3{}
	archive := &S3Archive{client: fake, bucket: "payments-bucket"}

	err := archive.Put(context.Background(), PaymentArchiveKey("paystack", "PSH-1"), []byte(`{"a":1}`), "application/json")
	require.NoError(t, err)

	assert.Equal(t, "payments-bucket", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "paystack/PSH-1.json", aws.ToString(fake.input.Key))
	assert.Equal(t, "application/json", aws.ToString(fake.input.ContentType))
	assert.Equal(t, `{"a":1}`, string(fake.body))
}

func TestS3ArchivePutError(t *testing.T) {
	archive := &S3Archive{client: &fakeS3{err: errors.New("access denied")}, bucket: "b"}
	err := archive.Put(context.Background(), "k", []byte("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestMemoryArchive(t *testing.T) {
	archive := NewMemoryArchive()
	require.NoError(t, archive.Put(context.Background(), "k", []byte("v"), "text/plain"))

	got, ok := archive.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))
}

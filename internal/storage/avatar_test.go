package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	body    string
	deleted []string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, "avatars/u1-1700000000123.png", Key("u1", "me.PNG", at))
	assert.Equal(t, "avatars/u1-1700000000123.jpg", Key("u1", "blob", at))
	assert.Equal(t, "avatars/u1-1700000000123.jpg", Key("u1", "", at))
}

func TestUpload(t *testing.T) {
	f := &fakeS3{}
	s := newAvatarStore(f, Config{Bucket: "ferns", Region: "eu-west-1"})
	s.now = func() time.Time { return time.UnixMilli(42) }

	url, err := s.Upload(context.Background(), "u9", "pic.webp", "image/webp", strings.NewReader("img"))
	require.NoError(t, err)
	assert.Equal(t, "https://ferns.s3.eu-west-1.amazonaws.com/avatars/u9-42.webp", url)
	require.Len(t, f.puts, 1)
	assert.Equal(t, "ferns", aws.ToString(f.puts[0].Bucket))
	assert.Equal(t, "image/webp", aws.ToString(f.puts[0].ContentType))
	assert.Equal(t, "img", f.body)
}

func TestUpload_Error(t *testing.T) {
	s := newAvatarStore(&fakeS3{err: errors.New("denied")}, Config{Bucket: "b", Region: "r"})
	_, err := s.Upload(context.Background(), "u", "a.jpg", "", strings.NewReader(""))
	assert.Error(t, err)
}

func TestDelete_OnlyOwnURLs(t *testing.T) {
	f := &fakeS3{}
	s := newAvatarStore(f, Config{Bucket: "b", Region: "r", PublicBaseURL: "https://cdn.fernid.app/"})

	require.NoError(t, s.Delete(context.Background(), "https://cdn.fernid.app/avatars/u-1.jpg"))
	require.NoError(t, s.Delete(context.Background(), "https://elsewhere/x.jpg"))
	assert.Equal(t, []string{"avatars/u-1.jpg"}, f.deleted)
}

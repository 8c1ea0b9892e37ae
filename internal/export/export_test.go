package export

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
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

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		f.body, _ = io.ReadAll(in.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_Upload(t *testing.T) {
	fake := &fakeS3{}
	u := &S3Uploader{Bucket: "reports", Key: "critpath/report.json", client: fake}

	require.NoError(t, u.Upload(context.Background(), []byte(`{"ok":true}`), "application/json"))

	assert.Equal(t, "reports", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "critpath/report.json", aws.ToString(fake.input.Key))
	assert.Equal(t, "application/json", aws.ToString(fake.input.ContentType))
	assert.Equal(t, `{"ok":true}`, string(fake.body))
	assert.Equal(t, "s3://reports/critpath/report.json", u.Target())
}

func TestS3Uploader_Error(t *testing.T) {
	base := errors.New("access denied")
	u := &S3Uploader{Bucket: "b", Key: "k", client: &fakeS3{err: base}}

	err := u.Upload(context.Background(), []byte("x"), "text/plain")

	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "put_object", ue.Op)
	assert.ErrorIs(t, err, base)
}

func TestLoadAWSConfig_StaticKeys(t *testing.T) {
	ctx := context.Background()
	cfg, err := loadAWSConfig(ctx, S3Options{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(ctx)
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
	assert.Equal(t, "token", creds.SessionToken)
}

func TestFileUploader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.json")
	u := &FileUploader{Path: path}

	require.NoError(t, u.Upload(context.Background(), []byte("data"), "application/json"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestParseTarget(t *testing.T) {
	ctx := context.Background()
	t.Setenv("AWS_REGION", "us-east-1")

	u, err := ParseTarget(ctx, "s3://reports/a/b.json", S3Options{AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	s3u, ok := u.(*S3Uploader)
	require.True(t, ok)
	assert.Equal(t, "reports", s3u.Bucket)
	assert.Equal(t, "a/b.json", s3u.Key)

	u, err = ParseTarget(ctx, "file:///tmp/report.json", S3Options{})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/report.json", u.Target())

	u, err = ParseTarget(ctx, "report.json", S3Options{})
	require.NoError(t, err)
	assert.IsType(t, &FileUploader{}, u)

	_, err = ParseTarget(ctx, "s3://bucket-only", S3Options{})
	assert.Error(t, err)

	_, err = ParseTarget(ctx, "", S3Options{})
	assert.Error(t, err)
}

package s3blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectAPI struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeObjectAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestWriter_Put(t *testing.T) {
	api := &fakeObjectAPI{}
	w := &Writer{client: api, bucket: "reports", prefix: "lab"}

	err := w.Put(context.Background(), "run-1/report.json", strings.NewReader("{}"), "application/json")
	require.NoError(t, err)

	require.Len(t, api.inputs, 1)
	assert.Equal(t, "reports", aws.ToString(api.inputs[0].Bucket))
	assert.Equal(t, "lab/run-1/report.json", aws.ToString(api.inputs[0].Key))
	assert.Equal(t, "application/json", aws.ToString(api.inputs[0].ContentType))
	assert.Equal(t, "{}", api.bodies[0])
}

func TestWriter_PutError(t *testing.T) {
	api := &fakeObjectAPI{err: errors.New("denied")}
	w := &Writer{client: api, bucket: "reports"}

	err := w.Put(context.Background(), "k", strings.NewReader("x"), "text/csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put object k")
}

func TestWriter_PutMultipartNeedsFullClient(t *testing.T) {
	w := &Writer{client: &fakeObjectAPI{}, bucket: "reports"}
	err := w.PutMultipart(context.Background(), "k", strings.NewReader("x"), 0)
	assert.Error(t, err)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{Region: "us-east-1"})
	assert.Error(t, err)

	_, err = New(context.Background(), ClientConfig{Bucket: "b"})
	assert.Error(t, err)
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"https://minio.local:9000", false, "https://minio.local:9000"},
		{"minio.local:9000", false, "http://minio.local:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normaliseEndpoint(tt.in, tt.useSSL), tt.in)
	}
}

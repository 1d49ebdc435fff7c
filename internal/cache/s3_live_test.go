package cache

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3InvalidateLive(t *testing.T) {
	endpoint := os.Getenv("MAGSAV_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("MAGSAV_TEST_S3_ENDPOINT not set")
	}
	const bucket = "magsav-test"
	ctx := context.Background()

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("us-east-1"))
	require.NoError(t, err)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(endpoint)
	})
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	var owned *s3types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		require.NoError(t, err)
	}

	c, err := NewS3(ctx, S3Config{Bucket: bucket, Endpoint: endpoint, PathStyle: true, Prefix: "thumbs"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Invalidate(context.Background(), "photos/other.jpg") })

	put := func(key string, size Size) {
		_, err := client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(c.objectKey(key, size)),
			Body:   strings.NewReader("thumb"),
		})
		require.NoError(t, err)
	}
	put("photos/lyre.jpg", Size{64, 64})
	put("photos/lyre.jpg", Size{640, 480})
	put("photos/other.jpg", Size{64, 64})

	require.NoError(t, c.Invalidate(ctx, "photos/lyre.jpg"))

	out, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String("thumbs/"),
	})
	require.NoError(t, err)
	var keys []string
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	assert.Equal(t, []string{"thumbs/photos/other.jpg/64x64"}, keys)
}

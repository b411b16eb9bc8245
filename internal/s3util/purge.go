package s3util

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// maxDeleteBatch is the S3 DeleteObjects limit per call.
const maxDeleteBatch = 1000

// EmptyBucket deletes every current object in the bucket. It stops at the
// first failed page; objects deleted before the failure stay deleted.
func EmptyBucket(ctx context.Context, client S3API, bucket string) (int, error) {
	start := time.Now()
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:  &bucket,
		MaxKeys: aws.Int32(maxDeleteBatch),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("ListObjectsV2 %s: %w", bucket, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, s3types.ObjectIdentifier{Key: obj.Key})
		}

		for i := 0; i < len(ids); i += maxDeleteBatch {
			end := min(i+maxDeleteBatch, len(ids))
			n, err := deleteBatch(ctx, client, bucket, ids[i:end])
			deleted += n
			if err != nil {
				return deleted, err
			}
		}
	}

	log.Info().
		Str("bucket", bucket).
		Int("deleted", deleted).
		Dur("duration", time.Since(start)).
		Msg("Bucket emptied")
	return deleted, nil
}

func deleteBatch(ctx context.Context, client S3API, bucket string, ids []s3types.ObjectIdentifier) (int, error) {
	out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: &bucket,
		Delete: &s3types.Delete{
			Objects: ids,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("DeleteObjects %s (%d keys): %w", bucket, len(ids), err)
	}
	if len(out.Errors) > 0 {
		first := out.Errors[0]
		return len(ids) - len(out.Errors), fmt.Errorf("DeleteObjects %s: %d keys failed, first %s: %s - %s",
			bucket, len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Code), aws.ToString(first.Message))
	}
	log.Debug().Str("bucket", bucket).Int("count", len(ids)).Msg("Deleted object batch")
	return len(ids), nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretGetter is the slice of Secrets Manager used here.
type secretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// objectPutter is the slice of the S3 client used here.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// loadSecret fetches a JSON secret from Secrets Manager.
func loadSecret(ctx context.Context, sm secretGetter, name string) (map[string]string, error) {
	out, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("secret %s has no string value", name)
	}

	secret := make(map[string]string)
	if err := json.Unmarshal([]byte(*out.SecretString), &secret); err != nil {
		return nil, fmt.Errorf("failed to decode secret %s: %w", name, err)
	}
	return secret, nil
}

// recordsToJSONLines serializes records as newline-delimited JSON, one
// compact object per line with a trailing newline.
func recordsToJSONLines(records []Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, fmt.Errorf("failed to encode record %d: %w", r.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// writeDataset uploads one dataset partition to S3 as NDJSON.
func writeDataset(ctx context.Context, client objectPutter, bucket, key string, records []Record) error {
	body, err := recordsToJSONLines(records)
	if err != nil {
		return err
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload s3://%s/%s: %w", bucket, key, err)
	}

	log.Printf("Wrote %d records to s3://%s/%s (%d bytes)", len(records), bucket, key, len(body))
	return nil
}

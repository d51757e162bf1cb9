// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package fs

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

type S3Filesystem struct {
	svc    *s3.S3
	bucket string
}

func NewS3Filesystem(session *session.Session, stage string) (*S3Filesystem, error) {
	return &S3Filesystem{
		svc:    s3.New(session),
		bucket: "hexvoxel-" + stage + "-snapshots",
	}, nil
}

var s3ContentTypes = map[string]string{
	".json": "application/json",
}

// UploadSnapshot uploads data under snapshots/. Snapshots are private and never cached.
func (s3Filesystem *S3Filesystem) UploadSnapshot(ctx context.Context, filename string, data []byte) error {
	// Patch S3's limited vocabulary of default content types
	var contentType *string
	for ext, mime := range s3ContentTypes {
		if strings.HasSuffix(filename, ext) {
			contentType = aws.String(mime)
			break
		}
	}

	_, err := s3Filesystem.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s3Filesystem.bucket),
		Key:          aws.String(path.Join("snapshots", path.Base(filename))),
		Body:         bytes.NewReader(data),
		CacheControl: aws.String("no-store"),
		ContentType:  contentType,
	})
	return err
}

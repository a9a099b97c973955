package storage

import (
	"context"
	"errors"
	"io/fs"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type S3 struct {
	client s3iface.S3API
}

var _ Engine = (*S3)(nil)

// NewS3 creates an engine from the shared AWS configuration.  The session
// is created on first use so a missing configuration only matters when an
// s3 URI is actually read.
func NewS3() *S3 {
	return &S3{}
}

func NewS3WithClient(client s3iface.S3API) *S3 {
	return &S3{client: client}
}

func (s *S3) api() (s3iface.S3API, error) {
	if s.client == nil {
		sess, err := session.NewSessionWithOptions(session.Options{
			SharedConfigState: session.SharedConfigEnable,
		})
		if err != nil {
			return nil, err
		}
		s.client = s3.New(sess)
	}
	return s.client, nil
}

func (s *S3) Get(ctx context.Context, u *URI) (Reader, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}
	out, err := client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Bucket()),
		Key:    aws.String(u.Key()),
	})
	if err != nil {
		return nil, s3Err(err)
	}
	return out.Body, nil
}

func (s *S3) Exists(ctx context.Context, u *URI) (bool, error) {
	client, err := s.api()
	if err != nil {
		return false, err
	}
	_, err = client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.Bucket()),
		Key:    aws.String(u.Key()),
	})
	if err != nil {
		if err := s3Err(err); errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func s3Err(err error) error {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
			return fs.ErrNotExist
		}
	}
	return err
}

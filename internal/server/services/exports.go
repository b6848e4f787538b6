package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/inspectsync/internal/api"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
	sc "github.com/dmitrijs2005/inspectsync/internal/server/config"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultExportContentType = "application/json"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// ExportService hands out presigned S3 URLs the client uploads evaluation
// snapshots to.
type ExportService struct {
	config *sc.Config
	now    func() time.Time
}

func NewExportService(cfg *sc.Config) *ExportService {
	return &ExportService{config: cfg, now: time.Now}
}

// StorageKey places an export under the company and user that made it.
func (s *ExportService) StorageKey(p auth.Principal) string {
	d := s.now().UTC()
	return fmt.Sprintf("exports/%d/%d/%d/%02d/%02d/%v.json", p.CompanyID, p.UserID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *ExportService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3AccessKey,
			s.config.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// Presign returns a fresh object key and a presigned PUT URL for it. The
// upload must carry contentType.
func (s *ExportService) Presign(ctx context.Context, p auth.Principal, contentType string) (*api.ExportResponse, error) {
	if contentType == "" {
		contentType = defaultExportContentType
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build presign client: %w", err)
	}

	bucket := s.config.S3Bucket
	key := s.StorageKey(p)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(s.config.ExportURLValidityDuration))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &api.ExportResponse{Key: key, URL: req.URL}, nil
}

package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/booksync/internal/common"
	sc "github.com/dmitrijs2005/booksync/internal/server/config"
	"github.com/dmitrijs2005/booksync/internal/timex"
	"github.com/google/uuid"
)

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
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

const backupKeyPrefix = "backups"

// BackupTicket is a presigned URL for one backup object.
type BackupTicket struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

// BackupService hands out presigned object storage URLs for book backups.
// The archives themselves are produced and consumed by clients.
type BackupService struct {
	gate   *Gate
	config *sc.Config
	now    func() time.Time
}

func NewBackupService(gate *Gate, cfg *sc.Config) *BackupService {
	return &BackupService{gate: gate, config: cfg, now: time.Now}
}

// backupKey lays objects out as backups/<device>/<book>/<date>/<uuid>.bak.
func backupKey(deviceID, bookID string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.bak", backupKeyPrefix, deviceID, bookID, at.UTC().Format(timex.DateLayout), uuid.New())
}

// parseBackupKey returns the device and book a key was issued for.
func parseBackupKey(key string) (deviceID, bookID string, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 5 || parts[0] != backupKeyPrefix || !strings.HasSuffix(parts[4], ".bak") {
		return "", "", validationf("malformed backup key %q", key)
	}
	if err := validateIDs(parts[1], parts[2]); err != nil {
		return "", "", err
	}
	return parts[1], parts[2], nil
}

func (s *BackupService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
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

// RequestUpload issues a presigned PUT for a new backup of bookID.
func (s *BackupService) RequestUpload(ctx context.Context, deviceID, bookID string) (*BackupTicket, error) {
	if err := validateIDs(bookID); err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeBook(ctx, nil, deviceID, bookID); err != nil {
		return nil, err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	bucket := s.config.S3Bucket
	key := backupKey(deviceID, bookID, now)

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.BackupURLValidity))
	if err != nil {
		return nil, err
	}

	return &BackupTicket{Key: key, URL: req.URL, ExpiresAt: now.Add(s.config.BackupURLValidity)}, nil
}

// RequestDownload issues a presigned GET for a backup the device uploaded,
// provided it can still access the book.
func (s *BackupService) RequestDownload(ctx context.Context, deviceID, key string) (*BackupTicket, error) {
	owner, bookID, err := parseBackupKey(key)
	if err != nil {
		return nil, err
	}
	if owner != deviceID {
		return nil, common.ErrUnauthorizedBook
	}
	if err := s.gate.AuthorizeBook(ctx, nil, deviceID, bookID); err != nil {
		return nil, err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.BackupURLValidity))
	if err != nil {
		return nil, err
	}

	return &BackupTicket{Key: key, URL: req.URL, ExpiresAt: s.now().Add(s.config.BackupURLValidity)}, nil
}

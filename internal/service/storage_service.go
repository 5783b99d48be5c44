package service

import (
	"context"
	"io"
	"lms_backend/internal/config"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageProvider 课程媒体（视频、封面、缩略图）的对象存储接口
type StorageProvider interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error)
	UploadFile(ctx context.Context, objectName string, localPath string, contentType string) (string, error)
	Delete(ctx context.Context, objectName string) error
	GetURL(objectName string) string
}

// LocalStorageProvider 本地磁盘实现，开发环境用
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(p.Config.LocalPath, objectName)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return p.GetURL(objectName), nil
}

func (p *LocalStorageProvider) UploadFile(ctx context.Context, objectName string, localPath string, contentType string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}
	return p.Upload(ctx, objectName, src, info.Size(), contentType)
}

func (p *LocalStorageProvider) Delete(ctx context.Context, objectName string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, objectName))
}

func (p *LocalStorageProvider) GetURL(objectName string) string {
	return "/uploads/" + objectName
}

// MinioStorageProvider MinIO 对象存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(objectName), nil
}

func (p *MinioStorageProvider) UploadFile(ctx context.Context, objectName string, localPath string, contentType string) (string, error) {
	_, err := p.Client.FPutObject(ctx, p.Config.MinioBucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(objectName), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, objectName string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, objectName, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(objectName string) string {
	return "/" + p.Config.MinioBucket + "/" + objectName
}

// StorageService 按配置选择 provider，minio 初始化失败回落本地盘
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	if cfg.Storage.Type == "minio" {
		if p, err := NewMinioStorageProvider(&cfg.Storage); err == nil {
			provider = p
		}
	}
	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}
	return &StorageService{Provider: provider}
}

func (s *StorageService) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	return s.Provider.Upload(ctx, objectName, reader, size, contentType)
}

func (s *StorageService) UploadFile(ctx context.Context, objectName string, localPath string, contentType string) (string, error) {
	return s.Provider.UploadFile(ctx, objectName, localPath, contentType)
}

func (s *StorageService) Delete(ctx context.Context, objectName string) error {
	return s.Provider.Delete(ctx, objectName)
}

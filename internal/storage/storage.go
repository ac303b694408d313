package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/LJTian/NewsHub/internal/config"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// 数据源状态
const (
	ProviderActive   = "active"
	ProviderDegraded = "degraded"
)

// Provider 描述一个新闻数据源及其最近一次调用结果，例如 newsapi / newsdata / rss
type Provider struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / degraded

	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	LastError     string     `gorm:"size:512" json:"lastError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB *gorm.DB
}

// Open 按配置选择 postgres 或 sqlite；时间统一以 UTC 写入，sqlite 下按字符串比较才有序
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres", "":
		if cfg.DSN == "" {
			return nil, errors.New("database dsn is required for postgres")
		}
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(os.Stderr, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
}

func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Provider{}, &Article{}, &User{}); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close 释放底层连接池
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureProvider 确保某个数据源存在
func (s *Store) EnsureProvider(ctx context.Context, code, name, baseURL string) (*Provider, error) {
	p := &Provider{}
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(p).Error; err == nil {
		return p, nil
	}

	p = &Provider{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  ProviderActive,
	}
	if err := s.DB.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// RecordProviderResult 记录一次数据源调用结果；callErr 为 nil 表示成功
func (s *Store) RecordProviderResult(ctx context.Context, code string, callErr error, at time.Time) error {
	at = at.UTC()
	updates := map[string]any{}
	if callErr == nil {
		updates["status"] = ProviderActive
		updates["last_success_at"] = at
	} else {
		msg := truncateRunes(callErr.Error(), 500)
		updates["status"] = ProviderDegraded
		updates["last_failure_at"] = at
		updates["last_error"] = msg
	}

	res := s.DB.WithContext(ctx).Model(&Provider{}).Where("code = ?", code).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("provider %s: %w", code, ErrNotFound)
	}
	return nil
}

func (s *Store) ListProviders(ctx context.Context) ([]Provider, error) {
	var list []Provider
	if err := s.DB.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func pageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

// truncateRunes 按 rune 截断，确保不会超过数据库字段长度
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

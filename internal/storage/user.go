package storage

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MaxHistory 阅读历史只保留最近的 100 条
const MaxHistory = 100

// Preferences 用户偏好，推荐时只读
type Preferences struct {
	Categories []string `json:"categories"`
	Keywords   []string `json:"keywords"`
	Language   string   `json:"language"`
	Country    string   `json:"country"`
}

// HistoryEntry 一条阅读记录；Rating 与 TimeSpent（秒）可选
type HistoryEntry struct {
	ArticleID string    `json:"articleId"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	ReadAt    time.Time `json:"readAt"`
	Rating    *int      `json:"rating,omitempty"`
	TimeSpent *int      `json:"timeSpent,omitempty"`
}

type User struct {
	ID          string                            `gorm:"primaryKey;size:36" json:"id"`
	Username    string                            `gorm:"size:128;index" json:"username"`
	Preferences datatypes.JSONType[Preferences]   `json:"preferences"`
	Bookmarks   datatypes.JSONSlice[string]       `json:"bookmarks"`
	History     datatypes.JSONSlice[HistoryEntry] `json:"history"`
	Settings    datatypes.JSONMap                 `json:"settings"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func defaultPreferences() Preferences {
	return Preferences{
		Categories: []string{},
		Keywords:   []string{},
		Language:   "en",
		Country:    "us",
	}
}

// CreateUser 新建用户，ID 为随机 UUID
func (s *Store) CreateUser(ctx context.Context, username string) (*User, error) {
	return s.createUser(s.DB.WithContext(ctx), uuid.NewString(), username)
}

func (s *Store) createUser(db *gorm.DB, id, username string) (*User, error) {
	u := &User{
		ID:          id,
		Username:    username,
		Preferences: datatypes.NewJSONType(defaultPreferences()),
		Bookmarks:   datatypes.JSONSlice[string]{},
		History:     datatypes.JSONSlice[HistoryEntry]{},
		Settings:    datatypes.JSONMap{},
	}
	if err := db.Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	u := &User{}
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(u).Error; err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// updateUser 在事务内读取-修改-写回；用户不存在且 id 为合法 UUID 时自动创建
func (s *Store) updateUser(ctx context.Context, id string, mutate func(u *User)) (*User, error) {
	var out *User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u := &User{}
		err := tx.Where("id = ?", id).First(u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if _, perr := uuid.Parse(id); perr != nil {
				return ErrNotFound
			}
			u, err = s.createUser(tx, id, "")
		}
		if err != nil {
			return err
		}

		mutate(u)
		if err := tx.Save(u).Error; err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdatePreferences(ctx context.Context, id string, prefs Preferences) (*User, error) {
	if prefs.Categories == nil {
		prefs.Categories = []string{}
	}
	if prefs.Keywords == nil {
		prefs.Keywords = []string{}
	}
	return s.updateUser(ctx, id, func(u *User) {
		u.Preferences = datatypes.NewJSONType(prefs)
	})
}

// AddHistory 记录一次阅读：同一篇文章只保留最新一条，最新的在前，超出 MaxHistory 的丢弃
func (s *Store) AddHistory(ctx context.Context, id string, entry HistoryEntry) (*User, error) {
	if entry.ReadAt.IsZero() {
		entry.ReadAt = time.Now()
	}
	entry.ReadAt = entry.ReadAt.UTC()
	return s.updateUser(ctx, id, func(u *User) {
		history := make([]HistoryEntry, 0, len(u.History)+1)
		history = append(history, entry)
		for _, h := range u.History {
			if h.ArticleID == entry.ArticleID {
				continue
			}
			history = append(history, h)
		}
		if len(history) > MaxHistory {
			history = history[:MaxHistory]
		}
		u.History = history
	})
}

// AddBookmark 幂等地收藏文章
func (s *Store) AddBookmark(ctx context.Context, id, articleID string) (*User, error) {
	return s.updateUser(ctx, id, func(u *User) {
		if !slices.Contains(u.Bookmarks, articleID) {
			u.Bookmarks = append(u.Bookmarks, articleID)
		}
	})
}

func (s *Store) RemoveBookmark(ctx context.Context, id, articleID string) (*User, error) {
	return s.updateUser(ctx, id, func(u *User) {
		u.Bookmarks = slices.DeleteFunc(u.Bookmarks, func(b string) bool { return b == articleID })
	})
}

// UpdateSettings 按键浅合并到已有设置，同名键被覆盖
func (s *Store) UpdateSettings(ctx context.Context, id string, patch map[string]any) (*User, error) {
	return s.updateUser(ctx, id, func(u *User) {
		merged := make(datatypes.JSONMap, len(u.Settings)+len(patch))
		for k, v := range u.Settings {
			merged[k] = v
		}
		for k, v := range patch {
			merged[k] = v
		}
		u.Settings = merged
	})
}

package service

import (
	"context"
	"fmt"
	"time"

	"budgie/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionService 管理登录会话。会话在过期或登出撤销前有效，Prune 清理这两类
type SessionService struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time
}

func NewSessionService(db *gorm.DB, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{DB: db, TTL: ttl, Now: time.Now}
}

// Start 为 userID 新建会话
func (s *SessionService) Start(ctx context.Context, userID uint) (*models.Session, error) {
	sess := &models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.Now().UTC().Add(s.TTL),
	}
	if err := s.DB.WithContext(ctx).Omit("User").Create(sess).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Revoke 撤销会话，id 不存在时不报错
func (s *SessionService) Revoke(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Prune 删除过期和已撤销的会话，返回删除条数
func (s *SessionService) Prune(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("revoked = ? OR expires_at <= ?", true, s.Now().UTC()).
		Delete(&models.Session{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Package backup 为管理员生成和管理整库快照
package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"budgie/internal/util"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	filePrefix   = "budgie_backup_"
	plainExt     = ".db"
	encryptedExt = ".db.enc"
	stampLayout  = "2006-01-02_15-04-05"
)

var (
	ErrInvalidName = errors.New("invalid backup filename")
	ErrNotFound    = errors.New("backup not found")
)

// Info 磁盘上的一份快照
type Info struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Encrypted bool      `json:"encrypted"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager 在 Dir 下生成数据库快照；设置了 EncryptKey 时用 AES-256-GCM 加密
type Manager struct {
	DB         *gorm.DB
	Dir        string
	EncryptKey string
	Now        func() time.Time
	Log        *slog.Logger
}

func NewManager(db *gorm.DB, dir, encryptKey string) *Manager {
	return &Manager{
		DB:         db,
		Dir:        dir,
		EncryptKey: encryptKey,
		Now:        time.Now,
		Log:        slog.Default(),
	}
}

// ValidateName 只接受普通的快照文件名
func ValidateName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return ErrInvalidName
	}
	if !strings.HasSuffix(name, plainExt) && !strings.HasSuffix(name, encryptedExt) {
		return ErrInvalidName
	}
	return nil
}

func (m *Manager) newName() string {
	ext := plainExt
	if m.EncryptKey != "" {
		ext = encryptedExt
	}
	stamp := m.Now().UTC().Format(stampLayout)
	return filePrefix + stamp + "_" + uuid.NewString()[:8] + ext
}

// Create 用 VACUUM INTO 生成一致的快照
func (m *Manager) Create(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	name := m.newName()
	target := filepath.Join(m.Dir, name)
	snapshot := target
	if m.EncryptKey != "" {
		snapshot = filepath.Join(m.Dir, ".tmp-"+uuid.NewString()+plainExt)
		defer os.Remove(snapshot)
	}

	if err := m.DB.WithContext(ctx).Exec("VACUUM INTO ?", snapshot).Error; err != nil {
		return nil, fmt.Errorf("vacuum into %s: %w", snapshot, err)
	}

	if m.EncryptKey != "" {
		raw, err := os.ReadFile(snapshot)
		if err != nil {
			return nil, fmt.Errorf("read snapshot: %w", err)
		}
		enc, err := util.EncryptAES(m.EncryptKey, raw)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, enc, 0o600); err != nil {
			return nil, fmt.Errorf("write backup: %w", err)
		}
	}

	st, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat backup: %w", err)
	}
	m.Log.Info("backup created", "filename", name, "size", st.Size())
	return &Info{
		Filename:  name,
		Size:      st.Size(),
		Encrypted: strings.HasSuffix(name, encryptedExt),
		CreatedAt: st.ModTime().UTC(),
	}, nil
}

// List 返回快照列表，最新的在前
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || ValidateName(e.Name()) != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{
			Filename:  e.Name(),
			Size:      fi.Size(),
			Encrypted: strings.HasSuffix(e.Name(), encryptedExt),
			CreatedAt: fi.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Filename > out[j].Filename
	})
	return out, nil
}

// Path 把快照文件名解析为已存在的文件路径
func (m *Manager) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	p := filepath.Join(m.Dir, name)
	fi, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("stat backup: %w", err)
	}
	if fi.IsDir() {
		return "", ErrNotFound
	}
	return p, nil
}

// ReadPlain 返回快照的 SQLite 内容，必要时先解密
func (m *Manager) ReadPlain(name string) ([]byte, error) {
	p, err := m.Path(name)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	if !strings.HasSuffix(name, encryptedExt) {
		return raw, nil
	}
	if m.EncryptKey == "" {
		return nil, fmt.Errorf("backup %s is encrypted and no key is configured", name)
	}
	return util.DecryptAES(m.EncryptKey, raw)
}

// Delete 删除一份快照
func (m *Manager) Delete(name string) error {
	p, err := m.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	m.Log.Info("backup deleted", "filename", name)
	return nil
}

// Prune 保留最新的 keep 份快照，删除其余；keep <= 0 时不清理
func (m *Manager) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	list, err := m.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range list[min(keep, len(list)):] {
		if err := m.Delete(info.Filename); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

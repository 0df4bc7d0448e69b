package memory

import (
	"context"
	"fmt"
	"sync"

	"inkwell/internal/domain"
)

type SettingStore struct {
	mu       sync.RWMutex
	settings map[string]*domain.Setting
}

func NewSettingStore() *SettingStore {
	return &SettingStore{
		settings: make(map[string]*domain.Setting),
	}
}

func settingKey(storyID domain.StoryID, t domain.SettingType) string {
	return fmt.Sprintf("%s-%s", storyID, t)
}

func (s *SettingStore) PutSetting(ctx context.Context, setting *domain.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *setting
	s.settings[settingKey(setting.StoryID, setting.Type)] = &copied
	return nil
}

func (s *SettingStore) GetSetting(ctx context.Context, storyID domain.StoryID, t domain.SettingType) (*domain.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.settings[settingKey(storyID, t)]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "setting", ID: settingKey(storyID, t)}
	}
	copied := *setting
	return &copied, nil
}

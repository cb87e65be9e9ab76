package validator

import (
	"sync"

	"katydid-common-contract/pkg/validator/core"
)

// profileState profile 启用状态
// enabledByDefault 为 true 时除 disabled 外全部启用，否则只启用 enabled 中的 profile
type profileState struct {
	mu               sync.RWMutex
	enabledByDefault bool
	enabled          map[string]struct{}
	disabled         map[string]struct{}
}

func newProfileState(enabledByDefault bool) *profileState {
	return &profileState{
		enabledByDefault: enabledByDefault,
		enabled:          make(map[string]struct{}),
		disabled:         make(map[string]struct{}),
	}
}

func (s *profileState) enable(profile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[profile] = struct{}{}
	delete(s.disabled, profile)
}

func (s *profileState) disable(profile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled[profile] = struct{}{}
	delete(s.enabled, profile)
}

func (s *profileState) reset(enabledByDefault bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabledByDefault = enabledByDefault
	s.enabled = make(map[string]struct{})
	s.disabled = make(map[string]struct{})
}

func (s *profileState) isEnabled(profile string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.enabledByDefault {
		_, off := s.disabled[profile]
		return !off
	}
	_, on := s.enabled[profile]
	return on
}

// active 判断校验在本次请求中是否生效
// 请求显式指定 profile 时只看交集，否则看全局启用状态
func (s *profileState) active(settings *core.Settings, requested []string) bool {
	profiles := settings.EffectiveProfiles()
	if len(requested) > 0 {
		for _, p := range profiles {
			for _, r := range requested {
				if p == r {
					return true
				}
			}
		}
		return false
	}
	for _, p := range profiles {
		if s.isEnabled(p) {
			return true
		}
	}
	return false
}

// EnableProfile 启用 profile
func (v *Validator) EnableProfile(profile string) {
	v.profiles.enable(profile)
}

// DisableProfile 禁用 profile
func (v *Validator) DisableProfile(profile string) {
	v.profiles.disable(profile)
}

// EnableAllProfiles 启用全部 profile（清除单独的禁用记录）
func (v *Validator) EnableAllProfiles() {
	v.profiles.reset(true)
}

// DisableAllProfiles 禁用全部 profile（清除单独的启用记录）
func (v *Validator) DisableAllProfiles() {
	v.profiles.reset(false)
}

// IsProfileEnabled profile 是否启用
func (v *Validator) IsProfileEnabled(profile string) bool {
	return v.profiles.isEnabled(profile)
}

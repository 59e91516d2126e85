package services

import "context"

// MockUserInfoProvider returns canned profiles keyed by access token
type MockUserInfoProvider struct {
	Profiles map[string]*Auth0UserInfo
}

func (m *MockUserInfoProvider) GetUserInfo(ctx context.Context, accessToken string) (*Auth0UserInfo, error) {
	if info, ok := m.Profiles[accessToken]; ok {
		return info, nil
	}
	return nil, NewAuthError("access token rejected by identity provider")
}

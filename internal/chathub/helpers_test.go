package chathub_test

import (
	"buddychat/backend/internal/chathub"
	"buddychat/backend/internal/companion"
	"buddychat/backend/internal/storage"
	"context"

	"github.com/stretchr/testify/mock"
)

func newTestHub() *chathub.ManagerService {
	return chathub.NewManagerService(storage.NewMemoryStore(), storage.NewMemoryStore())
}

// MockProvider is a testify mock of companion.Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Complete(ctx context.Context, messages []companion.Message) (companion.Message, error) {
	args := m.Called(ctx, messages)
	return args.Get(0).(companion.Message), args.Error(1)
}

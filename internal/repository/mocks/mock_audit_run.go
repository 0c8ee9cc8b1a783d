package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/joseph-ayodele/bill-audit/internal/entity"
)

type MockAuditRunRepository struct {
	mock.Mock
}

func (m *MockAuditRunRepository) Create(ctx context.Context, run *entity.AuditRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockAuditRunRepository) Finish(ctx context.Context, run *entity.AuditRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockAuditRunRepository) Get(ctx context.Context, id uuid.UUID) (*entity.AuditRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*entity.AuditRun)
	return run, args.Error(1)
}

func (m *MockAuditRunRepository) List(ctx context.Context, limit int) ([]entity.AuditRun, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]entity.AuditRun)
	return runs, args.Error(1)
}

package mocks

import (
	"context"

	"neurocase/internal/model"
	"neurocase/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockCaseService struct {
	mock.Mock
}

func (m *MockCaseService) Create(ctx context.Context, in service.CreateCaseInput) (*service.CreateCaseResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreateCaseResult), args.Error(1)
}

func (m *MockCaseService) List(ctx context.Context) (*service.CaseListResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CaseListResult), args.Error(1)
}

func (m *MockCaseService) Get(ctx context.Context, id string) (*model.Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}

func (m *MockCaseService) GenerateImages(ctx context.Context, id string) (*model.Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}

func (m *MockCaseService) Reprompt(ctx context.Context, id, additional string, timepoints []model.Timepoint) (*model.Case, error) {
	args := m.Called(ctx, id, additional, timepoints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}

func (m *MockCaseService) GenerateVideo(ctx context.Context, id string, tp model.Timepoint, seconds int) (*model.Case, error) {
	args := m.Called(ctx, id, tp, seconds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Case), args.Error(1)
}

func (m *MockCaseService) FileURL(ctx context.Context, id, path string) (string, error) {
	args := m.Called(ctx, id, path)
	return args.String(0), args.Error(1)
}

package mocks

import (
	"context"

	"neurocase/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockImageGenerator struct {
	mock.Mock
}

func (m *MockImageGenerator) GenerateImages(ctx context.Context, prompt string, timepoints []model.Timepoint) (map[model.Timepoint]string, error) {
	args := m.Called(ctx, prompt, timepoints)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.Timepoint]string), args.Error(1)
}

type MockVideoGenerator struct {
	mock.Mock
}

func (m *MockVideoGenerator) GenerateVideo(ctx context.Context, imageURL, prompt string, seconds int) (string, error) {
	args := m.Called(ctx, imageURL, prompt, seconds)
	return args.String(0), args.Error(1)
}

type MockPromptRefiner struct {
	mock.Mock
}

func (m *MockPromptRefiner) RefinePrompt(ctx context.Context, patient model.PatientInfo, basePrompt string, ehrFiles, ctScans []model.FileMeta) (string, error) {
	args := m.Called(ctx, patient, basePrompt, ehrFiles, ctScans)
	return args.String(0), args.Error(1)
}

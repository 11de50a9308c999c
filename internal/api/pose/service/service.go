package poseService

import (
	"context"
	"sync"

	"HeadTurner/internal/api/pose"
	"HeadTurner/internal/entity"
	"HeadTurner/pkg/dispatcher"
	"HeadTurner/pkg/indicator"
	"HeadTurner/pkg/s3"
	"HeadTurner/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Dispatcher is the part of *dispatcher.Dispatcher the service needs.
type Dispatcher interface {
	RequestPose(ctx context.Context, req entity.PoseRequest) entity.PoseResult
	Forget(ctx context.Context, req entity.PoseRequest) error
	Stats() dispatcher.Stats
}

type IPoseService interface {
	Generate(ctx context.Context, req entity.PoseRequest) (*pose.GenerateResponse, error)
	Forget(ctx context.Context, req entity.PoseRequest) error
	Prompt(yaw, pitch int) pose.PromptResponse
	Indicator(yaw, pitch int) indicator.Indicator
	Preview(yaw, pitch int) pose.PreviewResponse
	Stats() dispatcher.Stats
}

type poseService struct {
	log        *logrus.Logger
	dispatcher Dispatcher
	archive    s3.ItfS3
	utils      utils.IUtils

	// archived maps a cache key to its object key so cached results can be
	// re-signed without a second upload.
	archived sync.Map
}

// NewPoseService wires the service; archive may be nil.
func NewPoseService(
	log *logrus.Logger,
	dispatcher Dispatcher,
	archive s3.ItfS3,
	utils utils.IUtils,
) IPoseService {
	return &poseService{
		log:        log,
		dispatcher: dispatcher,
		archive:    archive,
		utils:      utils,
	}
}

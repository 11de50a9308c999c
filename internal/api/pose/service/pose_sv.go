package poseService

import (
	"context"
	"encoding/base64"
	"time"

	"HeadTurner/internal/api/pose"
	"HeadTurner/internal/entity"
	contextPkg "HeadTurner/pkg/context"
	"HeadTurner/pkg/dispatcher"
	"HeadTurner/pkg/indicator"
	"HeadTurner/pkg/log"
	"HeadTurner/pkg/prompt"
)

func (s *poseService) Generate(ctx context.Context, req entity.PoseRequest) (*pose.GenerateResponse, error) {
	if !prompt.InRange(req.Yaw, req.Pitch) {
		return nil, pose.ErrInvalidAngle
	}

	requestID := contextPkg.GetRequestID(ctx)
	res := s.dispatcher.RequestPose(ctx, req)

	if res.Failure != nil {
		return nil, res.Failure
	}
	if res.Image == nil {
		return nil, pose.ErrInternalServerError
	}

	s.log.WithFields(log.Fields{
		"request_id": requestID,
		"yaw":        req.Yaw,
		"pitch":      req.Pitch,
		"cached":     res.Cached,
		"bytes":      len(res.Image.Data),
	}).Info("Pose generated")

	return &pose.GenerateResponse{
		Image:      base64.StdEncoding.EncodeToString(res.Image.Data),
		MimeType:   res.Image.MimeType,
		Prompt:     res.Prompt,
		Cached:     res.Cached,
		ArchiveURL: s.archiveURL(ctx, dispatcher.NewKey(req).String(), *res.Image),
		CreatedAt:  res.CreatedAt,
	}, nil
}

// Forget drops the cached result for req along with its archived copy, so
// the next Generate asks the editor again.
func (s *poseService) Forget(ctx context.Context, req entity.PoseRequest) error {
	if !prompt.InRange(req.Yaw, req.Pitch) {
		return pose.ErrInvalidAngle
	}

	cacheKey := dispatcher.NewKey(req).String()
	if err := s.dispatcher.Forget(ctx, req); err != nil {
		return err
	}

	objectKey, ok := s.archived.LoadAndDelete(cacheKey)
	if !ok || s.archive == nil {
		return nil
	}

	if err := s.archive.DeleteFile(objectKey.(string)); err != nil {
		s.log.WithFields(log.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"object_key": objectKey,
			"error":      err.Error(),
		}).Warn("Failed to delete archived pose")
	}

	return nil
}

func (s *poseService) Prompt(yaw, pitch int) pose.PromptResponse {
	return pose.PromptResponse{
		Yaw:         yaw,
		Pitch:       pitch,
		YawZone:     prompt.Classify(yaw),
		PitchZone:   prompt.Classify(pitch),
		YawPhrase:   prompt.YawPhrase(yaw),
		PitchPhrase: prompt.PitchPhrase(pitch),
		Prompt:      prompt.Compile(yaw, pitch),
	}
}

func (s *poseService) Indicator(yaw, pitch int) indicator.Indicator {
	return indicator.Build(yaw, pitch)
}

func (s *poseService) Preview(yaw, pitch int) pose.PreviewResponse {
	return pose.PreviewResponse{
		Prompt:    s.Prompt(yaw, pitch),
		Indicator: s.Indicator(yaw, pitch),
	}
}

func (s *poseService) Stats() dispatcher.Stats {
	return s.dispatcher.Stats()
}

// archiveURL uploads a result once per cache key and returns a presigned
// link to it. Archive problems never fail the request.
func (s *poseService) archiveURL(ctx context.Context, cacheKey string, img entity.Image) string {
	if s.archive == nil {
		return ""
	}

	requestID := contextPkg.GetRequestID(ctx)

	objectKey, ok := s.archived.Load(cacheKey)
	if !ok {
		name, err := s.utils.NewULIDFromTimestamp(time.Now())
		if err != nil {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Failed to generate archive name")
			return ""
		}

		key, err := s.archive.UploadImage(ctx, name, img)
		if err != nil {
			s.log.WithFields(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Failed to archive pose")
			return ""
		}

		objectKey, _ = s.archived.LoadOrStore(cacheKey, key)
	}

	signed, err := s.archive.PresignUrl(objectKey.(string))
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to presign archive url")
		return ""
	}

	return signed
}

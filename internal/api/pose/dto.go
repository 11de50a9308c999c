package pose

import (
	"time"

	"HeadTurner/pkg/indicator"
	"HeadTurner/pkg/prompt"
)

type AnglesRequest struct {
	Yaw   int `json:"yaw" form:"yaw" query:"yaw" validate:"min=-45,max=45"`
	Pitch int `json:"pitch" form:"pitch" query:"pitch" validate:"min=-30,max=30"`
}

type GenerateRequest struct {
	ImageBase64 string `json:"image_base64" validate:"required"`
	MimeType    string `json:"mime_type" validate:"omitempty,oneof=image/jpeg image/png image/webp"`
	Yaw         int    `json:"yaw" validate:"min=-45,max=45"`
	Pitch       int    `json:"pitch" validate:"min=-30,max=30"`
}

type GenerateResponse struct {
	Image      string    `json:"image"`
	MimeType   string    `json:"mime_type"`
	Prompt     string    `json:"prompt"`
	Cached     bool      `json:"cached"`
	ArchiveURL string    `json:"archive_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type PromptResponse struct {
	Yaw         int         `json:"yaw"`
	Pitch       int         `json:"pitch"`
	YawZone     prompt.Zone `json:"yaw_zone"`
	PitchZone   prompt.Zone `json:"pitch_zone"`
	YawPhrase   string      `json:"yaw_phrase"`
	PitchPhrase string      `json:"pitch_phrase"`
	Prompt      string      `json:"prompt"`
}

type PreviewResponse struct {
	Prompt    PromptResponse      `json:"prompt"`
	Indicator indicator.Indicator `json:"indicator"`
}

const (
	IndicatorFormatSVG  = "svg"
	IndicatorFormatJSON = "json"
)

package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"HeadTurner/internal/entity"
)

var (
	// ErrNoImage is returned by editors when the provider answered without
	// an output image.
	ErrNoImage = errors.New("provider returned no image")
	// ErrRateLimited is returned by editors when the provider rejected the
	// call for quota reasons.
	ErrRateLimited = errors.New("provider rate limit reached")
)

const (
	MsgRefused     = "AI refused to generate. Try a different pose."
	MsgTimeout     = "The AI took too long to respond. Please try again."
	MsgRateLimited = "The AI service is busy right now. Wait a minute and try again."
)

func toFailure(err error) *entity.Failure {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &entity.Failure{Kind: entity.FailureTimeout, Message: MsgTimeout}
	case errors.Is(err, ErrNoImage):
		return &entity.Failure{Kind: entity.FailureRefused, Message: MsgRefused}
	case errors.Is(err, ErrRateLimited):
		return &entity.Failure{Kind: entity.FailureRateLimited, Message: MsgRateLimited}
	default:
		return &entity.Failure{Kind: entity.FailureExternal, Message: fmt.Sprintf("AI Error: %v", err)}
	}
}

package application

import (
	"context"
	"fmt"

	"github.com/helios-robotics/roverops/internal/domain/model"
)

// SlamController is the slice of the rover API the SLAM service needs.
type SlamController interface {
	ControlSlam(ctx context.Context, token string, action model.SlamAction) (string, error)
}

// SlamService relays SLAM process control to the backend.
type SlamService struct {
	api    SlamController
	tokens TokenSource
}

// NewSlamService creates a SlamService.
func NewSlamService(api SlamController, tokens TokenSource) *SlamService {
	return &SlamService{api: api, tokens: tokens}
}

// Control validates the action and forwards it, returning the backend's
// reported SLAM state ("running" or "stopped").
func (s *SlamService) Control(ctx context.Context, action string) (string, error) {
	if !model.ValidSlamAction(action) {
		return "", fmt.Errorf("invalid slam action %q", action)
	}

	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		token = ""
	}

	return s.api.ControlSlam(ctx, token, model.SlamAction(action))
}

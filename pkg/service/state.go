package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"rebooto/pkg/database"
	"rebooto/pkg/errs"
	"rebooto/pkg/models"
	"rebooto/pkg/ocr"
	"rebooto/pkg/rules"
)

// StateScope selects which slice of states a listing returns.
type StateScope string

const (
	ScopeAll      StateScope = "all"
	ScopeOpen     StateScope = "open"
	ScopeResolved StateScope = "resolved"
	ScopeUnknown  StateScope = "unknown"
)

// StateService ingests screenshots into states and serves state queries. A
// device has at most one open state; new screenshots update it in place.
type StateService struct {
	states    database.StateStore
	devices   database.DeviceStore
	extractor ocr.TextExtractor
	matcher   *rules.Matcher
}

func NewStateService(states database.StateStore, devices database.DeviceStore, extractor ocr.TextExtractor, matcher *rules.Matcher) *StateService {
	return &StateService{states: states, devices: devices, extractor: extractor, matcher: matcher}
}

func (svc *StateService) Get(ctx context.Context, id int64) (*models.State, error) {
	return svc.states.Get(ctx, id)
}

func (svc *StateService) Screenshot(ctx context.Context, id int64) ([]byte, error) {
	state, err := svc.states.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return state.Screenshot, nil
}

// ScreenshotByDevice returns the screenshot of the device's open state.
func (svc *StateService) ScreenshotByDevice(ctx context.Context, deviceUID string) ([]byte, error) {
	state, err := svc.states.OpenByDevice(ctx, deviceUID)
	if err != nil {
		return nil, err
	}
	return state.Screenshot, nil
}

// Ingest turns a screenshot into state: extract text, upsert the device's
// open state and match it against the rules.
func (svc *StateService) Ingest(ctx context.Context, deviceUID string, image []byte) (*models.State, error) {
	if _, err := svc.devices.Get(ctx, deviceUID); err != nil {
		return nil, err
	}

	text, err := svc.extractor.ExtractText(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("failed to extract screenshot text: %w", err)
	}

	state, err := svc.states.OpenByDevice(ctx, deviceUID)
	switch {
	case err == nil:
		state.Screenshot = image
		state.OCRText = text
		state, err = svc.states.Save(ctx, state)
	case errors.Is(err, errs.ErrNotFound):
		state, err = svc.states.Create(ctx, &models.State{
			Screenshot: image,
			OCRText:    text,
			DeviceUID:  deviceUID,
		})
	}
	if err != nil {
		return nil, err
	}

	if err := svc.matcher.MatchState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// List returns states in the given scope, optionally restricted to one device
// and filtered by a regex over the extracted text.
func (svc *StateService) List(ctx context.Context, scope StateScope, deviceUID, textRegex string) ([]*models.State, error) {
	filter := database.StateFilter{DeviceUID: deviceUID}

	var (
		states []*models.State
		err    error
	)
	switch scope {
	case ScopeAll, "":
		states, err = svc.states.All(ctx, filter)
	case ScopeOpen:
		states, err = svc.states.Open(ctx, filter)
	case ScopeResolved:
		states, err = svc.states.Resolved(ctx, filter)
	case ScopeUnknown:
		states, err = svc.states.Unknown(ctx, filter)
	default:
		return nil, errs.Validation("unknown state scope '%s'", scope)
	}
	if err != nil {
		return nil, err
	}

	if textRegex == "" {
		return states, nil
	}
	pattern, err := regexp.Compile(textRegex)
	if err != nil {
		return nil, errs.Validation("invalid regex: %v", err)
	}
	filtered := states[:0]
	for _, state := range states {
		if pattern.MatchString(state.OCRText) {
			filtered = append(filtered, state)
		}
	}
	return filtered, nil
}

// Resolve manually closes or reopens a state.
func (svc *StateService) Resolve(ctx context.Context, id int64, resolved bool) (*models.State, error) {
	if _, err := svc.states.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := svc.states.SetResolved(ctx, id, resolved); err != nil {
		return nil, err
	}
	return svc.states.Get(ctx, id)
}

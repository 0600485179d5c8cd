package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"studio/internal/imagegen"
	"studio/internal/session"
)

// ErrBusy is returned when an action is submitted while a previous submission
// of the same action is still in flight. The submission is dropped.
var ErrBusy = errors.New("orchestrator: action already in flight")

// Commands is the surface the presentation layer drives. Every user gesture
// maps onto exactly one method.
type Commands interface {
	Start(ctx context.Context) error
	SaveCredential(ctx context.Context, token string) error
	ChangeCredential(ctx context.Context) error
	Generate(ctx context.Context, form GenerateForm) error
	OpenModal(m session.Modal, index int) error
	CloseModal()
	Zoom(op ZoomOp) (float64, error)
	UploadMask(name string, data []byte) error
	Upscale(ctx context.Context, form UpscaleForm) error
	Edit(ctx context.Context, form EditForm) error
	WarmUp(ctx context.Context) <-chan struct{}
	Snapshot() session.Snapshot
	Image(index int) ([]byte, imagegen.Format, error)
}

// ImageAPI is implemented by *imagegen.Client.
type ImageAPI interface {
	Generate(ctx context.Context, token string, req imagegen.GenerationRequest) (imagegen.Batch, error)
	Upscale(ctx context.Context, token string, req imagegen.UpscaleRequest) (imagegen.Batch, error)
	Edit(ctx context.Context, token string, req imagegen.EditRequest) (imagegen.Batch, error)
	ModelTraits(ctx context.Context, token string) (map[string]json.RawMessage, error)
}

// CredentialStore is implemented by *credentials.Store.
type CredentialStore interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Level grades a notification for display.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// Notification is a transient toast.
type Notification struct {
	ID      string         `json:"id"`
	Level   Level          `json:"level"`
	Action  session.Action `json:"action,omitempty"`
	Kind    imagegen.Kind  `json:"kind,omitempty"`
	Message string         `json:"message"`
	At      time.Time      `json:"at"`
}

// Notifier receives toasts and re-render requests.
type Notifier interface {
	Notify(n Notification)
	Render(snap session.Snapshot)
}

// ZoomOp is one of the view modal zoom controls.
type ZoomOp string

const (
	ZoomIn    ZoomOp = "in"
	ZoomOut   ZoomOp = "out"
	ZoomReset ZoomOp = "reset"
)

// GenerateForm carries the generate form fields as entered.
type GenerateForm struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Model          string  `json:"model"`
	StylePreset    string  `json:"style_preset"`
	Width          int     `json:"width" validate:"gt=0,lte=4096"`
	Height         int     `json:"height" validate:"gt=0,lte=4096"`
	Steps          int     `json:"steps" validate:"gt=0,lte=150"`
	CfgScale       float64 `json:"cfg_scale" validate:"gte=0,lte=50"`
	Seed           *int64  `json:"seed"`
	Variants       int     `json:"variants" validate:"gt=0,lte=4"`
	Format         string  `json:"format" validate:"omitempty,oneof=png jpeg jpg webp"`
	SafeMode       bool    `json:"safe_mode"`
	HideWatermark  bool    `json:"hide_watermark"`
	EmbedMetadata  bool    `json:"embed_metadata"`
	LoraStrength   int     `json:"lora_strength" validate:"gte=0,lte=100"`
}

// UpscaleForm carries the upscale modal selection.
type UpscaleForm struct {
	Scale string `json:"scale" validate:"omitempty,oneof=2 4"`
}

// EditForm carries the edit modal selection. The mask is uploaded separately.
type EditForm struct {
	Mode        string `json:"mode" validate:"omitempty,oneof=inpaint outpaint"`
	Instruction string `json:"instruction" validate:"lte=1500"`
}

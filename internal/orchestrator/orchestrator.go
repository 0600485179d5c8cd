// Package orchestrator turns user gestures into validated API calls and
// applies their outcome to the session.
//
// Each submit action (generate, upscale, edit) runs through
// idle -> validating -> in_flight -> succeeded|failed -> idle. A gate per
// action admits one submission at a time; the gate is always released on
// return, so the submitting control comes back enabled on every exit path.
// Different actions do not wait for each other and the last one to finish
// owns the displayed batch.
package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio/internal/credentials"
	"studio/internal/imagegen"
	"studio/internal/session"
)

const warmUpTimeout = 30 * time.Second

type gate struct {
	busy atomic.Bool
}

func (g *gate) acquire() bool { return g.busy.CompareAndSwap(false, true) }
func (g *gate) release()      { g.busy.Store(false) }

type Options struct {
	API          ImageAPI
	Credentials  CredentialStore
	State        *session.State
	Notifier     Notifier
	Logger       zerolog.Logger
	DefaultModel string
}

type Orchestrator struct {
	api          ImageAPI
	creds        CredentialStore
	state        *session.State
	notifier     Notifier
	log          zerolog.Logger
	defaultModel string
	gates        map[session.Action]*gate
	now          func() time.Time
}

var _ Commands = (*Orchestrator)(nil)

func New(opts Options) *Orchestrator {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = discard{}
	}
	o := &Orchestrator{
		api:          opts.API,
		creds:        opts.Credentials,
		state:        opts.State,
		notifier:     notifier,
		log:          opts.Logger.With().Str("component", "orchestrator").Logger(),
		defaultModel: opts.DefaultModel,
		gates:        make(map[session.Action]*gate, len(session.Actions)),
		now:          time.Now,
	}
	for _, a := range session.Actions {
		o.gates[a] = &gate{}
	}
	return o
}

// Start decides the initial screen from the stored credential and, when one
// exists, kicks off the traits warm-up.
func (o *Orchestrator) Start(ctx context.Context) error {
	_, ok, err := o.creds.Get(ctx)
	if err != nil {
		return fmt.Errorf("orchestrator: read stored credential: %w", err)
	}
	o.state.SetCredentialPresent(ok)
	o.render()
	if ok {
		o.WarmUp(ctx)
	}
	return nil
}

func (o *Orchestrator) SaveCredential(ctx context.Context, token string) error {
	if err := o.creds.Set(ctx, token); err != nil {
		if errors.Is(err, credentials.ErrInvalidToken) {
			err = imagegen.InvalidInput("Please enter your API key")
		}
		o.report("", err)
		return err
	}
	o.log.Info().Msg("api key saved")
	o.state.SetCredentialPresent(true)
	o.notify(LevelSuccess, "", "", "API key saved")
	o.render()
	o.WarmUp(ctx)
	return nil
}

func (o *Orchestrator) ChangeCredential(ctx context.Context) error {
	if err := o.creds.Clear(ctx); err != nil {
		o.report("", err)
		return err
	}
	o.log.Info().Msg("api key cleared")
	o.state.SetCredentialPresent(false)
	o.render()
	return nil
}

// WarmUp fetches model traits in the background. Failures are logged and
// surfaced but never block other actions. The returned channel closes when
// the call has finished.
func (o *Orchestrator) WarmUp(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), warmUpTimeout)
	go func() {
		defer close(done)
		defer cancel()
		token, ok, err := o.creds.Get(ctx)
		if err != nil || !ok {
			o.log.Debug().Err(err).Msg("skipping model traits warm-up")
			return
		}
		traits, err := o.api.ModelTraits(ctx, token)
		if err != nil {
			o.log.Warn().Err(err).Msg("model traits warm-up failed")
			o.notify(LevelWarning, "", imagegen.KindOf(err), "Could not load model traits: "+message(err))
			return
		}
		o.log.Debug().Int("models", len(traits)).Msg("model traits loaded")
		o.state.SetTraits(traits)
		o.render()
	}()
	return done
}

func (o *Orchestrator) Generate(ctx context.Context, form GenerateForm) error {
	return o.submit(ctx, session.ActionGenerate, func(token string) (func(context.Context) (imagegen.Batch, error), error) {
		if strings.TrimSpace(form.Prompt) == "" {
			return nil, imagegen.InvalidInput("Please enter a prompt")
		}
		if err := checkForm(form); err != nil {
			return nil, err
		}
		req := o.buildGeneration(form)
		o.state.SetModel(req.Model)
		o.state.SetFormat(req.Format)
		return func(ctx context.Context) (imagegen.Batch, error) {
			return o.api.Generate(ctx, token, req)
		}, nil
	})
}

func (o *Orchestrator) buildGeneration(form GenerateForm) imagegen.GenerationRequest {
	model := strings.TrimSpace(form.Model)
	if model == "" {
		model = o.state.Model()
	}
	format, ok := imagegen.ParseFormat(form.Format)
	if !ok {
		format = o.state.Format()
	}
	req := imagegen.GenerationRequest{
		Prompt:         strings.TrimSpace(form.Prompt),
		NegativePrompt: strings.TrimSpace(form.NegativePrompt),
		Model:          model,
		Width:          form.Width,
		Height:         form.Height,
		Steps:          form.Steps,
		CfgScale:       form.CfgScale,
		Seed:           form.Seed,
		Variants:       form.Variants,
		Format:         format,
		SafeMode:       form.SafeMode,
		HideWatermark:  form.HideWatermark,
		EmbedMetadata:  form.EmbedMetadata,
		LoraStrength:   form.LoraStrength,
	}
	if preset := strings.TrimSpace(form.StylePreset); preset != "" && !strings.EqualFold(preset, imagegen.StylePresetNone) {
		req.StylePreset = preset
	}
	return req
}

func (o *Orchestrator) Upscale(ctx context.Context, form UpscaleForm) error {
	return o.submit(ctx, session.ActionUpscale, func(token string) (func(context.Context) (imagegen.Batch, error), error) {
		if err := checkForm(form); err != nil {
			return nil, err
		}
		image, target, err := o.modalImage(session.ModalUpscale, "Select an image to upscale")
		if err != nil {
			return nil, err
		}
		scale := strings.TrimSpace(form.Scale)
		if scale == "" {
			scale = o.state.UpscaleScale()
		}
		o.state.SetUpscaleScale(scale)
		req := imagegen.UpscaleRequest{Image: image, Scale: scale, Format: target.Format}
		return func(ctx context.Context) (imagegen.Batch, error) {
			return o.api.Upscale(ctx, token, req)
		}, nil
	})
}

func (o *Orchestrator) Edit(ctx context.Context, form EditForm) error {
	return o.submit(ctx, session.ActionEdit, func(token string) (func(context.Context) (imagegen.Batch, error), error) {
		if err := checkForm(form); err != nil {
			return nil, err
		}
		image, target, err := o.modalImage(session.ModalEdit, "Select an image to edit")
		if err != nil {
			return nil, err
		}
		mask := o.state.Mask()
		if len(mask) == 0 {
			return nil, imagegen.InvalidInput("Please upload a mask image")
		}
		mode := imagegen.EditMode(strings.TrimSpace(form.Mode))
		if mode == "" {
			mode, _ = o.state.EditOptions()
		}
		o.state.SetEditOptions(mode, form.Instruction)
		req := imagegen.EditRequest{
			Image:       image,
			Mask:        mask,
			Mode:        mode,
			Instruction: strings.TrimSpace(form.Instruction),
			Format:      target.Format,
		}
		return func(ctx context.Context) (imagegen.Batch, error) {
			return o.api.Edit(ctx, token, req)
		}, nil
	})
}

func (o *Orchestrator) modalImage(m session.Modal, missing string) (string, session.Target, error) {
	active, target := o.state.ActiveModal()
	if active != m {
		return "", session.Target{}, imagegen.InvalidInput(missing)
	}
	image, _, ok := o.state.Image(target.Index)
	if !ok {
		return "", session.Target{}, imagegen.InvalidInput(missing)
	}
	return image, target, nil
}

// submit runs one pass of the action state machine. prepare performs the
// local validation and returns the network call to make.
func (o *Orchestrator) submit(ctx context.Context, action session.Action, prepare func(token string) (func(context.Context) (imagegen.Batch, error), error)) error {
	g := o.gates[action]
	if !g.acquire() {
		o.log.Debug().Str("action", string(action)).Msg("submission ignored, already in flight")
		return ErrBusy
	}
	// The phase is reset while the gate is still held; a submission admitted
	// by the release must never have its in_flight phase overwritten.
	defer func() {
		o.transition(action, session.PhaseIdle)
		g.release()
		o.render()
	}()

	o.transition(action, session.PhaseValidating)
	token, err := o.token(ctx)
	if err != nil {
		return o.fail(action, err)
	}
	call, err := prepare(token)
	if err != nil {
		return o.fail(action, err)
	}

	o.transition(action, session.PhaseInFlight)
	o.render()

	// Once sent, a request runs to completion even if the caller goes away.
	batch, err := call(context.WithoutCancel(ctx))
	if err == nil && batch.Len() == 0 {
		err = &imagegen.Error{Kind: imagegen.KindUnknown, Message: "The API returned no image"}
	}
	if err != nil {
		return o.fail(action, err)
	}

	o.state.ReplaceBatch(batch)
	switch action {
	case session.ActionUpscale:
		o.state.CloseModalIf(session.ModalUpscale)
	case session.ActionEdit:
		o.state.CloseModalIf(session.ModalEdit)
	}
	o.transition(action, session.PhaseSucceeded)
	o.notify(LevelSuccess, action, "", successMessage(action, batch))
	return nil
}

func (o *Orchestrator) token(ctx context.Context) (string, error) {
	token, ok, err := o.creds.Get(ctx)
	if err != nil {
		return "", &imagegen.Error{Kind: imagegen.KindUnknown, Message: "Could not read the stored API key", Err: err}
	}
	if !ok {
		return "", imagegen.ErrUnauthenticated()
	}
	return token, nil
}

func (o *Orchestrator) fail(action session.Action, err error) error {
	o.transition(action, session.PhaseFailed)
	var apiErr *imagegen.Error
	if errors.As(err, &apiErr) && apiErr.Kind == imagegen.KindBadRequest && apiErr.MentionsField("model") {
		o.log.Info().Str("model", o.defaultModel).Msg("model rejected, resetting selection")
		o.state.SetModel(o.defaultModel)
	}
	o.report(action, err)
	return err
}

func (o *Orchestrator) report(action session.Action, err error) {
	kind := imagegen.KindOf(err)
	o.log.Warn().Err(err).Str("action", string(action)).Str("kind", string(kind)).Msg("action failed")
	o.notify(LevelError, action, kind, message(err))
}

func (o *Orchestrator) transition(action session.Action, phase session.Phase) {
	o.log.Debug().Str("action", string(action)).Str("phase", string(phase)).Msg("transition")
	o.state.SetPhase(action, phase)
}

func (o *Orchestrator) OpenModal(m session.Modal, index int) error {
	if _, err := o.state.OpenModal(m, index); err != nil {
		return err
	}
	o.render()
	return nil
}

func (o *Orchestrator) CloseModal() {
	o.state.CloseModal()
	o.render()
}

func (o *Orchestrator) Zoom(op ZoomOp) (float64, error) {
	if m, _ := o.state.ActiveModal(); m != session.ModalView {
		return o.state.Zoom(), imagegen.InvalidInput("Open an image to zoom")
	}
	var z float64
	switch op {
	case ZoomIn:
		z = o.state.ZoomIn()
	case ZoomOut:
		z = o.state.ZoomOut()
	case ZoomReset:
		z = o.state.ResetZoom()
	default:
		return o.state.Zoom(), imagegen.InvalidInput(fmt.Sprintf("Unknown zoom operation %q", op))
	}
	o.render()
	return z, nil
}

func (o *Orchestrator) UploadMask(name string, data []byte) error {
	if len(data) == 0 {
		return imagegen.InvalidInput("The mask file is empty")
	}
	o.state.SetMask(name, data)
	o.log.Debug().Str("name", name).Int("bytes", len(data)).Msg("mask uploaded")
	o.render()
	return nil
}

func (o *Orchestrator) Snapshot() session.Snapshot {
	return o.state.Snapshot()
}

// Image decodes the image at index of the current batch for download.
func (o *Orchestrator) Image(index int) ([]byte, imagegen.Format, error) {
	encoded, format, ok := o.state.Image(index)
	if !ok {
		return nil, "", imagegen.InvalidInput(fmt.Sprintf("No image at position %d", index+1))
	}
	if i := strings.Index(encoded, ";base64,"); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", &imagegen.Error{Kind: imagegen.KindUnknown, Message: "Image data is corrupt", Err: err}
	}
	return data, format, nil
}

func (o *Orchestrator) notify(level Level, action session.Action, kind imagegen.Kind, msg string) {
	o.notifier.Notify(Notification{
		ID:      uuid.NewString(),
		Level:   level,
		Action:  action,
		Kind:    kind,
		Message: msg,
		At:      o.now().UTC(),
	})
}

func (o *Orchestrator) render() {
	o.notifier.Render(o.state.Snapshot())
}

func message(err error) string {
	var apiErr *imagegen.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func successMessage(action session.Action, batch imagegen.Batch) string {
	switch action {
	case session.ActionUpscale:
		return "Image upscaled successfully"
	case session.ActionEdit:
		return "Image edited successfully"
	}
	if batch.Len() == 1 {
		return "Generated 1 image"
	}
	return fmt.Sprintf("Generated %d images", batch.Len())
}

type discard struct{}

func (discard) Notify(Notification)     {}
func (discard) Render(session.Snapshot) {}

// Package session holds the single in-memory record the page renders from.
//
// Every method takes the lock for the duration of one field update only.
// Independent actions (a mask upload while a generate call is in flight)
// therefore interleave freely; exclusion per action type is handled by the
// orchestrator's gates, not here.
package session

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"studio/internal/imagegen"
)

const (
	MinZoom     = 0.2
	MaxZoom     = 5.0
	ZoomStep    = 0.2
	DefaultZoom = 1.0
)

// Modal is the tagged variant for the overlay currently shown.
type Modal int

const (
	ModalNone Modal = iota
	ModalView
	ModalUpscale
	ModalEdit
)

func (m Modal) String() string {
	switch m {
	case ModalView:
		return "view"
	case ModalUpscale:
		return "upscale"
	case ModalEdit:
		return "edit"
	default:
		return "none"
	}
}

// ParseModal maps the wire name back to a Modal.
func ParseModal(s string) (Modal, bool) {
	for _, m := range []Modal{ModalView, ModalUpscale, ModalEdit} {
		if m.String() == s {
			return m, true
		}
	}
	return ModalNone, false
}

// Action identifies one of the three submit controls.
type Action string

const (
	ActionGenerate Action = "generate"
	ActionUpscale  Action = "upscale"
	ActionEdit     Action = "edit"
)

var Actions = []Action{ActionGenerate, ActionUpscale, ActionEdit}

// Phase is the position of an action in its submit cycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseInFlight   Phase = "in_flight"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Target identifies the image a modal operates on.
type Target struct {
	Index  int
	Format imagegen.Format
}

type State struct {
	mu sync.Mutex

	version       uint64
	hasCredential bool
	batch         imagegen.Batch
	modal         Modal
	target        Target
	zoom          float64

	mask            []byte
	maskName        string
	editMode        imagegen.EditMode
	editInstruction string
	upscaleScale    string

	model  string
	format imagegen.Format
	traits map[string]json.RawMessage
	phases map[Action]Phase
}

func New(model string) *State {
	s := &State{
		zoom:         DefaultZoom,
		editMode:     imagegen.EditModeInpaint,
		upscaleScale: imagegen.UpscaleScales[0],
		model:        model,
		format:       imagegen.FormatPNG,
		phases:       make(map[Action]Phase, len(Actions)),
	}
	for _, a := range Actions {
		s.phases[a] = PhaseIdle
	}
	return s
}

func (s *State) touch() { s.version++ }

func (s *State) SetCredentialPresent(present bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasCredential = present
	s.touch()
}

func (s *State) HasCredential() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasCredential
}

// ReplaceBatch swaps the displayed batch for b in its entirety.
func (s *State) ReplaceBatch(b imagegen.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	images := make([]string, len(b.Images))
	copy(images, b.Images)
	s.batch = imagegen.Batch{Images: images, Format: b.Format}
	s.touch()
}

func (s *State) Batch() imagegen.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	images := make([]string, len(s.batch.Images))
	copy(images, s.batch.Images)
	return imagegen.Batch{Images: images, Format: s.batch.Format}
}

// Image returns the encoded image at index of the current batch.
func (s *State) Image(index int) (string, imagegen.Format, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.batch.Images) {
		return "", "", false
	}
	return s.batch.Images[index], s.batch.Format, true
}

// OpenModal shows modal m for the image at index. The index must be valid in
// the current batch.
func (s *State) OpenModal(m Modal, index int) (Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == ModalNone {
		return Target{}, imagegen.InvalidInput("Unknown dialog")
	}
	if index < 0 || index >= len(s.batch.Images) {
		return Target{}, imagegen.InvalidInput(fmt.Sprintf("No image at position %d", index+1))
	}
	s.modal = m
	s.target = Target{Index: index, Format: s.batch.Format}
	s.touch()
	return s.target, nil
}

// CloseModal hides whichever modal is active. Zoom is reset; closing the
// edit modal also discards the pending mask and instruction.
func (s *State) CloseModal() Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// CloseModalIf closes the active modal only when it is m.
func (s *State) CloseModalIf(m Modal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modal != m {
		return false
	}
	s.closeLocked()
	return true
}

func (s *State) closeLocked() Modal {
	closed := s.modal
	if closed == ModalEdit {
		s.mask, s.maskName, s.editInstruction = nil, "", ""
	}
	s.modal = ModalNone
	s.target = Target{}
	s.zoom = DefaultZoom
	s.touch()
	return closed
}

func (s *State) ActiveModal() (Modal, Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modal, s.target
}

func (s *State) ZoomIn() float64    { return s.adjustZoom(ZoomStep) }
func (s *State) ZoomOut() float64   { return s.adjustZoom(-ZoomStep) }
func (s *State) ResetZoom() float64 { return s.setZoom(DefaultZoom) }

func (s *State) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

func (s *State) adjustZoom(delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setZoomLocked(s.zoom + delta)
}

func (s *State) setZoom(z float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setZoomLocked(z)
}

func (s *State) setZoomLocked(z float64) float64 {
	z = math.Round(z*100) / 100
	s.zoom = math.Max(MinZoom, math.Min(MaxZoom, z))
	s.touch()
	return s.zoom
}

func (s *State) SetMask(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mask = append([]byte(nil), data...)
	s.maskName = name
	s.touch()
}

func (s *State) Mask() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.mask) == 0 {
		return nil
	}
	return append([]byte(nil), s.mask...)
}

func (s *State) SetEditOptions(mode imagegen.EditMode, instruction string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editMode = mode
	s.editInstruction = instruction
	s.touch()
}

func (s *State) EditOptions() (imagegen.EditMode, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editMode, s.editInstruction
}

func (s *State) SetUpscaleScale(scale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upscaleScale = scale
	s.touch()
}

func (s *State) UpscaleScale() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upscaleScale
}

func (s *State) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	s.touch()
}

func (s *State) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *State) SetFormat(f imagegen.Format) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = f
	s.touch()
}

func (s *State) Format() imagegen.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *State) SetTraits(traits map[string]json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traits = traits
	s.touch()
}

func (s *State) SetPhase(a Action, p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[a] = p
	s.touch()
}

func (s *State) Phase(a Action) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases[a]
}

// Snapshot is a point-in-time copy of the state for rendering.
type Snapshot struct {
	Version         uint64                     `json:"version"`
	Screen          string                     `json:"screen"`
	HasCredential   bool                       `json:"has_credential"`
	Images          []string                   `json:"images"`
	BatchFormat     imagegen.Format            `json:"batch_format,omitempty"`
	Modal           string                     `json:"modal"`
	TargetIndex     int                        `json:"target_index"`
	Zoom            float64                    `json:"zoom"`
	MaskName        string                     `json:"mask_name,omitempty"`
	MaskLoaded      bool                       `json:"mask_loaded"`
	EditMode        imagegen.EditMode          `json:"edit_mode"`
	EditInstruction string                     `json:"edit_instruction"`
	UpscaleScale    string                     `json:"upscale_scale"`
	Model           string                     `json:"model"`
	Format          imagegen.Format            `json:"format"`
	TraitModels     []string                   `json:"trait_models,omitempty"`
	Phases          map[Action]Phase           `json:"phases"`
	Controls        map[Action]bool            `json:"controls"`
	Traits          map[string]json.RawMessage `json:"-"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version:         s.version,
		Screen:          "credential",
		HasCredential:   s.hasCredential,
		Images:          append([]string{}, s.batch.Images...),
		BatchFormat:     s.batch.Format,
		Modal:           s.modal.String(),
		TargetIndex:     -1,
		Zoom:            s.zoom,
		MaskName:        s.maskName,
		MaskLoaded:      len(s.mask) > 0,
		EditMode:        s.editMode,
		EditInstruction: s.editInstruction,
		UpscaleScale:    s.upscaleScale,
		Model:           s.model,
		Format:          s.format,
		Phases:          make(map[Action]Phase, len(s.phases)),
		Controls:        make(map[Action]bool, len(s.phases)),
		Traits:          s.traits,
	}
	if s.hasCredential {
		snap.Screen = "main"
	}
	if s.modal != ModalNone {
		snap.TargetIndex = s.target.Index
	}
	for a, p := range s.phases {
		snap.Phases[a] = p
		snap.Controls[a] = p != PhaseInFlight && p != PhaseValidating
	}
	for id := range s.traits {
		snap.TraitModels = append(snap.TraitModels, id)
	}
	sort.Strings(snap.TraitModels)
	return snap
}

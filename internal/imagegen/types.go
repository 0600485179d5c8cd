package imagegen

import "strings"

// Format is the encoded output format requested from the API.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWEBP Format = "webp"
)

// Formats lists the supported output formats in display order.
var Formats = []Format{FormatPNG, FormatJPEG, FormatWEBP}

// ContentType returns the MIME type for images encoded in f.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWEBP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Extension returns the file extension, without dot, for f.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	if f == "" {
		return string(FormatPNG)
	}
	return string(f)
}

// ParseFormat normalizes user input. ok is false for unsupported formats.
func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpg" {
		f = FormatJPEG
	}
	for _, known := range Formats {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Models known to the page. The remote API is the authority; unknown ids are
// still passed through.
var Models = []string{
	"fluently-xl",
	"flux-dev",
	"flux-dev-uncensored",
	"pony-realism",
	"lustify-sdxl",
	"stable-diffusion-3.5",
}

// StylePresetNone is the selector value meaning "no preset". It is never sent.
const StylePresetNone = "none"

var StylePresets = []string{
	StylePresetNone,
	"3D Model",
	"Analog Film",
	"Anime",
	"Cinematic",
	"Comic Book",
	"Digital Art",
	"Enhance",
	"Fantasy Art",
	"Isometric Style",
	"Line Art",
	"Neon Punk",
	"Origami",
	"Photographic",
	"Pixel Art",
	"Texture",
}

// UpscaleScales are the target factors offered by the upscale modal.
var UpscaleScales = []string{"2", "4"}

// EditMode selects how the edit endpoint applies the mask.
type EditMode string

const (
	EditModeInpaint  EditMode = "inpaint"
	EditModeOutpaint EditMode = "outpaint"
)

var EditModes = []EditMode{EditModeInpaint, EditModeOutpaint}

// GenerationRequest is the body of POST /image/generate.
type GenerationRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Model          string  `json:"model"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	CfgScale       float64 `json:"cfg_scale"`
	Seed           *int64  `json:"seed,omitempty"`
	Variants       int     `json:"variants"`
	Format         Format  `json:"format"`
	SafeMode       bool    `json:"safe_mode"`
	HideWatermark  bool    `json:"hide_watermark"`
	EmbedMetadata  bool    `json:"embed_exif_metadata"`
	LoraStrength   int     `json:"lora_strength"`
	// StylePreset is omitted entirely when empty.
	StylePreset string `json:"style_preset,omitempty"`
}

// UpscaleRequest is the body of POST /image/upscale.
type UpscaleRequest struct {
	Image  string `json:"image"`
	Scale  string `json:"scale"`
	Format Format `json:"format"`
}

// EditRequest is the body of POST /image/edit. Mask is sent base64 encoded.
type EditRequest struct {
	Image       string   `json:"image"`
	Mask        []byte   `json:"mask"`
	Mode        EditMode `json:"mode"`
	Instruction string   `json:"instruction"`
	Format      Format   `json:"format"`
}

// Batch is an ordered set of base64 encoded images sharing one format.
type Batch struct {
	Images []string
	Format Format
}

func (b Batch) Len() int { return len(b.Images) }

type generateResponse struct {
	Images []string `json:"images"`
}

type singleImageResponse struct {
	Image string `json:"image"`
}

package jsoncfg

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"videochain/internal/domain"
)

const (
	// DefaultPayloadVersion represents the schema version persisted for queued chains.
	DefaultPayloadVersion = "2025-01"
	// DefaultChainSeconds is used when the request omits the duration.
	DefaultChainSeconds = 10
	// MaxChainSeconds caps the requested duration of a single chain.
	MaxChainSeconds = 120
	// DefaultAspectRatio is used when the request omits the aspect ratio.
	DefaultAspectRatio = "16:9"
	// DefaultLocale is applied when no locale preference is provided.
	DefaultLocale = "en"
)

var allowedAspectRatios = map[string]struct{}{
	"1:1":       {},
	"16:9":      {},
	"9:16":      {},
	"landscape": {},
	"portrait":  {},
	"square":    {},
}

// Seconds accepts both JSON numbers and numeric strings.
type Seconds int

func (s *Seconds) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" || raw == `""` {
		*s = 0
		return nil
	}
	raw = strings.Trim(raw, `"`)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*s = Seconds(int(f))
		return nil
	}
	return fmt.Errorf("seconds must be numeric, got %s", string(b))
}

// ChainPayload is the client contract for chained video generation. The same
// document is stored verbatim on queued chain jobs.
type ChainPayload struct {
	Version     string   `json:"version"`
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Seconds     Seconds  `json:"seconds"`
	AspectRatio string   `json:"aspect_ratio"`
	InputImage  string   `json:"input_image,omitempty"`
	InputImages []string `json:"input_images,omitempty"`
	Locale      string   `json:"locale,omitempty"`
	// PublicBaseURL is set by the server when a chain is queued.
	PublicBaseURL string `json:"public_base_url,omitempty"`
}

// Normalize applies server defaults.
func (p *ChainPayload) Normalize(preferredLocale string) {
	if p == nil {
		return
	}
	p.Prompt = strings.TrimSpace(p.Prompt)
	p.Model = strings.TrimSpace(p.Model)
	if p.Version == "" {
		p.Version = DefaultPayloadVersion
	}
	if p.Seconds <= 0 {
		p.Seconds = DefaultChainSeconds
	}
	if p.AspectRatio == "" {
		p.AspectRatio = DefaultAspectRatio
	}
	if p.Locale == "" {
		if preferredLocale != "" {
			p.Locale = preferredLocale
		} else {
			p.Locale = DefaultLocale
		}
	}
}

// Validate ensures the payload satisfies the contract before a chain starts.
func (p ChainPayload) Validate() error {
	if p.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if p.Model == "" {
		return fmt.Errorf("model is required")
	}
	if p.Seconds < 1 || p.Seconds > MaxChainSeconds {
		return fmt.Errorf("seconds must be between 1 and %d", MaxChainSeconds)
	}
	if _, ok := allowedAspectRatios[strings.ToLower(p.AspectRatio)]; !ok {
		return fmt.Errorf("aspect_ratio must be one of 16:9, 9:16, 1:1")
	}
	if _, err := p.Images(); err != nil {
		return err
	}
	return nil
}

// Images decodes the seed images. input_images wins over input_image.
func (p ChainPayload) Images() ([][]byte, error) {
	sources := p.InputImages
	if len(sources) == 0 && p.InputImage != "" {
		sources = []string{p.InputImage}
	}
	var out [][]byte
	for i, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		data, err := DecodeImage(src)
		if err != nil {
			return nil, fmt.Errorf("input image %d: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// DecodeImage decodes a base64 image, with or without a data URL prefix.
func DecodeImage(src string) ([]byte, error) {
	if strings.HasPrefix(src, "data:") {
		idx := strings.Index(src, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		src = src[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(src)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return data, nil
}

// GenerationRequest converts a validated payload into a chain request.
func (p ChainPayload) GenerationRequest(userID string) (domain.GenerationRequest, error) {
	images, err := p.Images()
	if err != nil {
		return domain.GenerationRequest{}, err
	}
	return domain.GenerationRequest{
		UserID:          userID,
		Prompt:          p.Prompt,
		Model:           p.Model,
		TotalSeconds:    int(p.Seconds),
		Aspect:          domain.ParseAspectRatio(p.AspectRatio),
		ReferenceImages: images,
		Locale:          p.Locale,
		PublicBaseURL:   p.PublicBaseURL,
	}, nil
}

func MustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("json marshal: %w", err))
	}
	return b
}

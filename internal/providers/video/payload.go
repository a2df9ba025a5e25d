package video

import (
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strconv"

	"github.com/h2non/filetype"

	"videochain/internal/domain"
)

// SubmitRequest is a typed provider submission. The set of implementations is
// closed: one per Family.
type SubmitRequest interface {
	Family() Family
	ModelName() string
	writeMultipart(w *multipart.Writer) error
}

// SoraSubmit is the sora payload. Sora accepts an explicit size and duration.
type SoraSubmit struct {
	Prompt         string
	Model          string
	Size           string
	Seconds        string
	ReferenceField string
	Images         [][]byte
	Index          int
}

func (s SoraSubmit) Family() Family    { return FamilySora }
func (s SoraSubmit) ModelName() string { return s.Model }

func (s SoraSubmit) writeMultipart(w *multipart.Writer) error {
	for _, kv := range [][2]string{{"prompt", s.Prompt}, {"model", s.Model}, {"size", s.Size}, {"seconds", s.Seconds}} {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	for j, img := range s.Images {
		if err := writeImagePart(w, s.ReferenceField, fmt.Sprintf("input_%d_%d", s.Index, j), img); err != nil {
			return err
		}
	}
	return nil
}

// VeoSubmit is the veo payload. Framing is encoded in the model name only, so
// no size or aspect field is sent.
type VeoSubmit struct {
	Prompt         string
	Model          string
	ReferenceField string
	References     [][]byte
	Index          int
}

func (v VeoSubmit) Family() Family    { return FamilyVeo }
func (v VeoSubmit) ModelName() string { return v.Model }

func (v VeoSubmit) writeMultipart(w *multipart.Writer) error {
	if err := w.WriteField("prompt", v.Prompt); err != nil {
		return err
	}
	if err := w.WriteField("model", v.Model); err != nil {
		return err
	}
	for j, img := range v.References {
		if err := writeImagePart(w, v.ReferenceField, fmt.Sprintf("ref_%d_%d", v.Index, j), img); err != nil {
			return err
		}
	}
	return nil
}

// SegmentInput carries what a builder needs for one segment.
type SegmentInput struct {
	Index        int
	Prompt       string
	Resolution   Resolution
	Aspect       domain.AspectRatio
	TotalSeconds int
	References   [][]byte
}

// BuildSubmit selects the payload variant from the resolved family.
func BuildSubmit(p Profile, in SegmentInput) (SubmitRequest, error) {
	switch in.Resolution.Family {
	case FamilySora:
		return SoraSubmit{
			Prompt:         in.Prompt,
			Model:          in.Resolution.Model,
			Size:           SoraSize(in.Aspect),
			Seconds:        SoraSeconds(in.TotalSeconds),
			ReferenceField: p.ReferenceField,
			Images:         in.References,
			Index:          in.Index,
		}, nil
	case FamilyVeo:
		var refs [][]byte
		if in.Resolution.SupportsReferenceImage {
			refs = in.References
		}
		return VeoSubmit{
			Prompt:         in.Prompt,
			Model:          in.Resolution.Model,
			ReferenceField: p.ReferenceField,
			References:     refs,
			Index:          in.Index,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedModel, in.Resolution.Model)
	}
}

// SegmentPrompt returns the prompt for segment index. Every segment after the
// first asks the provider to continue from the seed frame instead of
// restarting the scene.
func SegmentPrompt(p Profile, prompt string, index int) string {
	if index == 0 {
		return prompt
	}
	return prompt + p.ContinuitySuffix
}

// SoraSize maps the aspect ratio to a sora frame size.
func SoraSize(a domain.AspectRatio) string {
	switch a {
	case domain.AspectPortrait:
		return "720x1280"
	case domain.AspectSquare:
		return "1024x1024"
	default:
		return "1280x720"
	}
}

// SoraSeconds asks for 10 second clips on short chains and 15 otherwise.
func SoraSeconds(totalSeconds int) string {
	if totalSeconds <= 10 {
		return strconv.Itoa(10)
	}
	return strconv.Itoa(15)
}

func writeImagePart(w *multipart.Writer, field, name string, data []byte) error {
	contentType, ext := "image/jpeg", "jpg"
	if kind, err := filetype.Match(data); err == nil && filetype.IsImage(data) {
		contentType, ext = kind.MIME.Value, kind.Extension
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s.%s"`, field, name, ext))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

package video

import (
	"strings"

	"videochain/internal/domain"
)

const (
	suffixLandscape = "landscape"
	suffixPortrait  = "portrait"
	suffixFast      = "fast"
	suffixFrameLock = "fl"
)

// Resolution is the concrete provider model for one segment. Capability is
// carried explicitly instead of being inferred from the model string.
type Resolution struct {
	Model                  string
	Family                 Family
	SupportsReferenceImage bool
}

// ClassifyModel maps a client model identifier to its provider family.
func ClassifyModel(model string) (Family, bool) {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "sora-"):
		return FamilySora, true
	case strings.HasPrefix(m, "veo-"):
		return FamilyVeo, true
	default:
		return "", false
	}
}

// IsFastModel reports whether the identifier requests the fast variant.
func IsFastModel(model string) bool {
	return strings.Contains(strings.ToLower(model), suffixFast)
}

// Resolve derives the provider model string. Veo models are rebuilt from
// their root: landscape adds "-landscape", portrait and square stay unmarked
// (square has no dedicated model and maps to portrait), fast adds "-fast" and
// an attached reference image always adds "-fl". Other families pass through.
func Resolve(baseModel string, aspect domain.AspectRatio, fast, hasReference bool) Resolution {
	family, ok := ClassifyModel(baseModel)
	if !ok {
		return Resolution{Model: baseModel}
	}
	if family == FamilySora {
		return Resolution{Model: baseModel, Family: FamilySora, SupportsReferenceImage: true}
	}

	model := veoRoot(baseModel)
	if aspect == domain.AspectLandscape {
		model += "-" + suffixLandscape
	}
	if fast {
		model += "-" + suffixFast
	}
	if hasReference {
		model += "-" + suffixFrameLock
	}
	return Resolution{Model: model, Family: FamilyVeo, SupportsReferenceImage: hasReference}
}

func veoRoot(model string) string {
	parts := strings.Split(model, "-")
	kept := parts[:0]
	for _, part := range parts {
		switch part {
		case suffixLandscape, suffixPortrait, suffixFast, suffixFrameLock:
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "-")
}

package video

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Family is the closed set of provider model families the chain can drive.
type Family string

const (
	FamilySora Family = "sora"
	FamilyVeo  Family = "veo"
)

const (
	soraContinuitySuffix = ". Continue the video sequence seamlessly from the provided starting frame. Develop the action and narrative further; do not simply repeat the initial scene. Ensure visual consistency with the previous segment."
	veoContinuitySuffix  = ". Seamlessly continue the motion and narrative from the reference starting frame. Develop the scene further."
)

// Profile holds the per-family constants of a chain. SegmentSeconds reflects
// the provider's single-call duration cap and is not client configurable.
type Profile struct {
	Family           Family
	SegmentSeconds   int
	MinimumSeconds   int
	PollInterval     time.Duration
	MaxPollAttempts  int
	ReferenceField   string
	ContinuitySuffix string
}

// IterationCount returns ceil(max(minimum, total) / segment), never below one.
func (p Profile) IterationCount(totalSeconds int) int {
	seg := p.SegmentSeconds
	if seg <= 0 {
		seg = 1
	}
	total := totalSeconds
	if total < p.MinimumSeconds {
		total = p.MinimumSeconds
	}
	n := (total + seg - 1) / seg
	if n < 1 {
		n = 1
	}
	return n
}

// MaxWait is the wall-clock bound of polling a single segment.
func (p Profile) MaxWait() time.Duration {
	return time.Duration(p.MaxPollAttempts) * p.PollInterval
}

// Profiles indexes profiles by family.
type Profiles map[Family]Profile

// DefaultProfiles returns the built-in provider profiles.
func DefaultProfiles() Profiles {
	return Profiles{
		FamilySora: {
			Family:           FamilySora,
			SegmentSeconds:   15,
			MinimumSeconds:   10,
			PollInterval:     5 * time.Second,
			MaxPollAttempts:  120,
			ReferenceField:   "input_image",
			ContinuitySuffix: soraContinuitySuffix,
		},
		FamilyVeo: {
			Family:           FamilyVeo,
			SegmentSeconds:   5,
			MinimumSeconds:   5,
			PollInterval:     5 * time.Second,
			MaxPollAttempts:  120,
			ReferenceField:   "input_reference",
			ContinuitySuffix: veoContinuitySuffix,
		},
	}
}

// For returns the profile of a family, falling back to the defaults.
func (p Profiles) For(f Family) (Profile, bool) {
	if prof, ok := p[f]; ok {
		return prof, true
	}
	prof, ok := DefaultProfiles()[f]
	return prof, ok
}

type profileOverride struct {
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	MaxPollAttempts     int    `toml:"max_poll_attempts"`
	ReferenceField      string `toml:"reference_field"`
}

type profileFile struct {
	Sora *profileOverride `toml:"sora"`
	Veo  *profileOverride `toml:"veo"`
}

// LoadProfiles reads operator overrides for polling behaviour from a TOML
// file. Segment lengths and continuity prompts are fixed per family and cannot
// be overridden. An empty path yields the defaults.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if strings.TrimSpace(path) == "" {
		return profiles, nil
	}
	var file profileFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("video: decode profiles %s: %w", path, err)
	}
	apply := func(f Family, o *profileOverride) {
		if o == nil {
			return
		}
		prof := profiles[f]
		if o.PollIntervalSeconds > 0 {
			prof.PollInterval = time.Duration(o.PollIntervalSeconds) * time.Second
		}
		if o.MaxPollAttempts > 0 {
			prof.MaxPollAttempts = o.MaxPollAttempts
		}
		if field := strings.TrimSpace(o.ReferenceField); field != "" {
			prof.ReferenceField = field
		}
		profiles[f] = prof
	}
	apply(FamilySora, file.Sora)
	apply(FamilyVeo, file.Veo)
	return profiles, nil
}

package services

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Lllllllleong/tipopdf/internal/failure"
	"github.com/Lllllllleong/tipopdf/internal/models"
)

var (
	volumePattern            = regexp.MustCompile(`^(PP|AP)(\d+)$`)
	issuedTargetPattern      = regexp.MustCompile(`^\d{6}$`)
	applicationTargetPattern = regexp.MustCompile(`^app\d{6}$`)
)

// ParseVolume reads the kind and sequence number out of a volume name.
// Issued volumes (PP) carry the sequence in their last two digits,
// application volumes (AP) in the two digits before those.
func ParseVolume(name string) (models.Volume, error) {
	m := volumePattern.FindStringSubmatch(name)
	if m == nil {
		return models.Volume{}, fmt.Errorf("%w: %q is not a PP or AP volume name", failure.ErrValidation, name)
	}
	issued := m[1] == "PP"
	digits := m[2]
	offset := 4
	if issued {
		offset = 2
	}
	if len(digits) < offset {
		return models.Volume{}, fmt.Errorf("%w: volume name %q is too short", failure.ErrValidation, name)
	}
	seq, _ := strconv.Atoi(digits[len(digits)-offset : len(digits)-offset+2])
	return models.Volume{Name: name, Issued: issued, Sequence: seq}, nil
}

// ValidateTarget checks that the volume belongs in the target folder.
// Issued volumes come three to a month and go to a plain yyyymm folder;
// application volumes come two to a month and go to appyyyymm.
// TODO: confirm the per-month volume counts with the archive team.
func ValidateTarget(v models.Volume, target string) error {
	pattern, perMonth := applicationTargetPattern, 2
	if v.Issued {
		pattern, perMonth = issuedTargetPattern, 3
	}
	if !pattern.MatchString(target) {
		return fmt.Errorf("%w: target folder %q does not fit volume %s", failure.ErrValidation, target, v.Name)
	}
	month, _ := strconv.Atoi(target[len(target)-2:])
	if d := month*perMonth - v.Sequence; d < 0 || d >= perMonth {
		return fmt.Errorf("%w: volume %s (sequence %d) does not belong in %s", failure.ErrValidation, v.Name, v.Sequence, target)
	}
	return nil
}

// ValidateVolumes parses every name and checks it against target before
// anything is touched.
func ValidateVolumes(names []string, target string) ([]models.Volume, error) {
	volumes := make([]models.Volume, 0, len(names))
	for _, name := range names {
		v, err := ParseVolume(name)
		if err != nil {
			return nil, err
		}
		if err := ValidateTarget(v, target); err != nil {
			return nil, err
		}
		volumes = append(volumes, v)
	}
	return volumes, nil
}

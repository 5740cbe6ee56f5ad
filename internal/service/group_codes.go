package service

import (
	"regexp"
	"strings"

	"github.com/alarm-messenger/relay-server-go/internal/config"
	apperrors "github.com/alarm-messenger/relay-server-go/internal/errors"
)

var groupCodePattern = regexp.MustCompile(`^[A-Z0-9-]+$`)

// NormalizeGroups turns raw group input into an ordered, deduplicated list
// of upper-case codes. Each entry may itself be a comma-separated list.
// An empty result means the emergency targets every active device.
func NormalizeGroups(raw []string) ([]string, error) {
	seen := make(map[string]struct{})
	var codes []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			code := strings.ToUpper(strings.TrimSpace(part))
			if code == "" {
				continue
			}
			if !groupCodePattern.MatchString(code) {
				return nil, apperrors.InvalidGroups()
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	if len(codes) > config.MaxGroupsPerEmergency {
		return nil, apperrors.TooManyGroups(config.MaxGroupsPerEmergency)
	}
	return codes, nil
}

// NormalizeGroupCode validates a single code for group CRUD.
func NormalizeGroupCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", apperrors.MissingRequired("code")
	}
	if !groupCodePattern.MatchString(code) {
		return "", apperrors.InvalidGroups()
	}
	return code, nil
}

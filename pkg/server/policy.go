package server

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/NicolasHaas/sosmeet/pkg/model"
	"github.com/NicolasHaas/sosmeet/pkg/protocol"
)

// AlarmPolicy decides what happens to alarm-code fields outside the known
// modes, hex colors and sound keys.
type AlarmPolicy string

const (
	PolicyAccept   AlarmPolicy = "accept"   // store as sent
	PolicyFallback AlarmPolicy = "fallback" // replace unknown values with defaults
	PolicyReject   AlarmPolicy = "reject"   // fail with a validation error
)

func (p AlarmPolicy) Valid() bool {
	switch p {
	case PolicyAccept, PolicyFallback, PolicyReject:
		return true
	default:
		return false
	}
}

var modeRule = "oneof=" + strings.Join(lo.Map(model.Modes(), func(m model.AlarmMode, _ int) string {
	return string(m)
}), " ")

// AlarmValidator applies an AlarmPolicy to caller-supplied alarm fields.
type AlarmValidator struct {
	policy    AlarmPolicy
	soundKeys []string
}

func NewAlarmValidator(policy AlarmPolicy, soundKeys []string) *AlarmValidator {
	keys := lo.Uniq(lo.FilterMap(soundKeys, func(k string, _ int) (string, bool) {
		k = strings.TrimSpace(k)
		return k, k != ""
	}))
	if len(keys) == 0 {
		keys = []string{model.DefaultSoundKey}
	}
	return &AlarmValidator{policy: policy, soundKeys: keys}
}

// Apply fills defaults and enforces the policy.
func (v *AlarmValidator) Apply(spec model.AlarmCodeSpec) (model.AlarmCodeSpec, error) {
	spec = spec.WithDefaults()
	if v.policy == PolicyAccept {
		return spec, nil
	}

	validate := protocol.Validator()
	if err := validate.Var(string(spec.Mode), modeRule); err != nil {
		if v.policy == PolicyReject {
			return spec, reject("mode", fmt.Sprintf("mode must be one of: %s", strings.TrimPrefix(modeRule, "oneof=")), err)
		}
		spec.Mode = model.DefaultAlarmMode
	}
	if err := validate.Var(spec.ColorHex, "hexcolor"); err != nil {
		if v.policy == PolicyReject {
			return spec, reject("colorHex", "colorHex must be a hex color", err)
		}
		spec.ColorHex = model.DefaultColorHex
	}
	if !lo.Contains(v.soundKeys, spec.SoundKey) {
		if v.policy == PolicyReject {
			return spec, reject("soundKey", fmt.Sprintf("soundKey must be one of: %s", strings.Join(v.soundKeys, " ")), nil)
		}
		spec.SoundKey = model.DefaultSoundKey
	}
	return spec, nil
}

func reject(field, msg string, err error) error {
	return &protocol.ValidationError{Field: field, Message: msg, Err: err}
}

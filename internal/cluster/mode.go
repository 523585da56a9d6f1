package cluster

import (
	"fmt"

	"github.com/roach88/dishm/internal/ir"
)

// ModeTag qualifies a mode option (e.g. Normal, Heavy, Light).
type ModeTag struct {
	MfgCode *uint16 `yaml:"mfg_code,omitempty" json:"mfg_code,omitempty"`
	Value   uint16  `yaml:"value" json:"value"`
}

// ModeOption is one entry of SupportedModes.
type ModeOption struct {
	Label    string    `yaml:"label" json:"label"`
	Mode     uint8     `yaml:"mode" json:"mode"`
	ModeTags []ModeTag `yaml:"mode_tags,omitempty" json:"mode_tags,omitempty"`
}

// Encode converts the option to its struct value.
func (m ModeOption) Encode() ir.Struct {
	tags := make(ir.List, len(m.ModeTags))
	for i, t := range m.ModeTags {
		tag := ir.NewStruct(ir.F("value", ir.Uint(t.Value)))
		if t.MfgCode != nil {
			tag["mfgCode"] = ir.Uint(*t.MfgCode)
		}
		tags[i] = tag
	}
	return ir.NewStruct(
		ir.F("label", ir.String(m.Label)),
		ir.F("mode", ir.Uint(m.Mode)),
		ir.F("modeTags", tags),
	)
}

// EncodeModeOptions converts a SupportedModes list to its value.
func EncodeModeOptions(opts []ModeOption) ir.List {
	l := make(ir.List, len(opts))
	for i, o := range opts {
		l[i] = o.Encode()
	}
	return l
}

// DecodeModeOptions converts a SupportedModes value into options.
// Every entry must be a struct with a uint "mode" field; label and tags are
// optional.
func DecodeModeOptions(v ir.Value) ([]ModeOption, error) {
	list, ok := v.(ir.List)
	if !ok {
		return nil, fmt.Errorf("SupportedModes: expected list, got %s", ir.Format(v))
	}

	opts := make([]ModeOption, 0, len(list))
	for i, elem := range list {
		s, ok := elem.(ir.Struct)
		if !ok {
			return nil, fmt.Errorf("SupportedModes[%d]: expected struct, got %s", i, ir.Format(elem))
		}
		mode, ok := ir.AsUint(s["mode"])
		if !ok || mode > 0xFF {
			return nil, fmt.Errorf("SupportedModes[%d]: mode must be uint8, got %s", i, ir.Format(s["mode"]))
		}
		opt := ModeOption{Mode: uint8(mode)}
		if label, ok := s["label"].(ir.String); ok {
			opt.Label = string(label)
		}
		if tags, ok := s["modeTags"].(ir.List); ok {
			for j, t := range tags {
				ts, ok := t.(ir.Struct)
				if !ok {
					return nil, fmt.Errorf("SupportedModes[%d].modeTags[%d]: expected struct", i, j)
				}
				val, _ := ir.AsUint(ts["value"])
				tag := ModeTag{Value: uint16(val)}
				if mfg, ok := ir.AsUint(ts["mfgCode"]); ok {
					code := uint16(mfg)
					tag.MfgCode = &code
				}
				opt.ModeTags = append(opt.ModeTags, tag)
			}
		}
		opts = append(opts, opt)
	}
	return opts, nil
}

// ChangeToModeRequest builds the ChangeToMode command fields.
func ChangeToModeRequest(newMode uint8) ir.Struct {
	return ir.NewStruct(ir.F("newMode", ir.Uint(newMode)))
}

// ChangeToModeResult is the decoded ChangeToModeResponse.
type ChangeToModeResult struct {
	Status     ModeStatus
	StatusText string
}

// EncodeChangeToModeResponse builds ChangeToModeResponse fields.
func EncodeChangeToModeResponse(status ModeStatus, text string) ir.Struct {
	s := ir.NewStruct(ir.F("status", ir.Uint(status)))
	if text != "" {
		s["statusText"] = ir.String(text)
	}
	return s
}

// DecodeChangeToModeResponse decodes ChangeToModeResponse fields.
func DecodeChangeToModeResponse(v ir.Value) (ChangeToModeResult, error) {
	s, ok := v.(ir.Struct)
	if !ok {
		return ChangeToModeResult{}, fmt.Errorf("ChangeToModeResponse: expected struct, got %s", ir.Format(v))
	}
	status, ok := ir.AsUint(s["status"])
	if !ok || status > 0xFF {
		return ChangeToModeResult{}, fmt.Errorf("ChangeToModeResponse: status must be uint8, got %s", ir.Format(s["status"]))
	}
	res := ChangeToModeResult{Status: ModeStatus(status)}
	if text, ok := s["statusText"].(ir.String); ok {
		res.StatusText = string(text)
	}
	return res, nil
}

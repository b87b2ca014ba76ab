package urlclass

import (
	"encoding/json"
	"fmt"
)

// CodecVersion is the current serialized payload version. Bump it when the
// payload shape changes and add a step to upgradePayload.
//
// History:
//
//	v1: no referral policy field (a legacy send_referral boolean instead).
//	v2: no header overrides and no valueless-parameter fields.
//	v3: current.
const CodecVersion = 3

// Encode serializes a class to its versioned payload.
func Encode(u *URLClass) (version int, payload []byte, err error) {
	payload, err = json.Marshal(u)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding url class %q: %w", u.Name, err)
	}
	return CodecVersion, payload, nil
}

// Decode deserializes a payload written at any historical version, walking
// it forward one version at a time before unmarshalling.
func Decode(version int, payload []byte) (*URLClass, error) {
	if version < 1 || version > CodecVersion {
		return nil, fmt.Errorf("unsupported url class payload version %d", version)
	}

	if version < CodecVersion {
		var fields map[string]any
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, fmt.Errorf("decoding v%d url class payload: %w", version, err)
		}
		for version < CodecVersion {
			var err error
			fields, err = upgradePayload(version, fields)
			if err != nil {
				return nil, err
			}
			version++
		}
		var err error
		payload, err = json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("re-encoding upgraded url class payload: %w", err)
		}
	}

	var u URLClass
	if err := json.Unmarshal(payload, &u); err != nil {
		return nil, fmt.Errorf("decoding url class payload: %w", err)
	}
	return &u, nil
}

// upgradePayload lifts a payload one version. Steps are pure: they only
// read and write the field map.
func upgradePayload(version int, fields map[string]any) (map[string]any, error) {
	switch version {
	case 1:
		// v1 carried a send_referral boolean. false maps to "never";
		// true and absent map to the pass-through default.
		policy := string(ReferralOnlyIfProvided)
		if send, ok := fields["send_referral"].(bool); ok && !send {
			policy = string(ReferralNever)
		}
		delete(fields, "send_referral")
		fields["referral_policy"] = policy
		return fields, nil

	case 2:
		// v2 predates header overrides and valueless-parameter handling.
		if _, ok := fields["header_overrides"]; !ok {
			fields["header_overrides"] = map[string]any{}
		}
		if _, ok := fields["allow_single_value_params"]; !ok {
			fields["allow_single_value_params"] = false
		}
		return fields, nil
	}
	return nil, fmt.Errorf("no upgrade step from url class payload version %d", version)
}

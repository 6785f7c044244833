package trust

import (
	"encoding/json"

	"github.com/iland112/local-pkd-sub001/core"
)

// Row models store the variable-length ValidationError/RevokedEntry
// lists as JSON blobs rather than normalized child tables, matching the
// teacher's use of denormalized JSON columns for Challenges in
// sa/model.go (pendingAuthzTable.ColMap("Challenges")).

func marshalValidationErrors(errs []core.ValidationError) (string, error) {
	if len(errs) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalValidationErrors(raw string) ([]core.ValidationError, error) {
	if raw == "" {
		return nil, nil
	}
	var errs []core.ValidationError
	if err := json.Unmarshal([]byte(raw), &errs); err != nil {
		return nil, err
	}
	return errs, nil
}

func marshalRevokedEntries(entries []core.RevokedEntry) (string, error) {
	if len(entries) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalRevokedEntries(raw string) ([]core.RevokedEntry, error) {
	if raw == "" {
		return nil, nil
	}
	var entries []core.RevokedEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

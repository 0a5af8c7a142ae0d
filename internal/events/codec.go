package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedPayload marks a deletion message no decoder understands.
var ErrMalformedPayload = errors.New("malformed media deletion payload")

const legacyDeletePrefix = "delete "

// EncodeMediaDeletion renders the wire body: a bare JSON integer.
func EncodeMediaDeletion(mediaID int64) []byte {
	return []byte(strconv.FormatInt(mediaID, 10))
}

// DecodeMediaDeletion extracts the media id from a message body. It accepts
// a JSON integer, an object {"media_id": N} and the legacy "delete <id>" text.
func DecodeMediaDeletion(body []byte) (int64, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	switch trimmed[0] {
	case '{':
		var obj struct {
			MediaID *int64 `json:"media_id"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil || obj.MediaID == nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, trimmed)
		}
		return validMediaID(*obj.MediaID)
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, trimmed)
		}
		return decodeText(s)
	}

	var id int64
	if err := json.Unmarshal(trimmed, &id); err == nil {
		return validMediaID(id)
	}
	return decodeText(string(trimmed))
}

func decodeText(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), legacyDeletePrefix) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, s)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s[len(legacyDeletePrefix):]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, s)
	}
	return validMediaID(id)
}

func validMediaID(id int64) (int64, error) {
	if id <= 0 {
		return 0, fmt.Errorf("%w: media id %d", ErrMalformedPayload, id)
	}
	return id, nil
}

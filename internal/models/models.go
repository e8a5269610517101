package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// SuccessCode is the application-level code the parse API returns on success.
const SuccessCode = 200

// StringOrStringSlice is a custom type that can unmarshal from either
// a JSON string or a JSON array of strings. This handles API responses
// where a field may return either format.
type StringOrStringSlice []string

// UnmarshalJSON implements json.Unmarshaler for StringOrStringSlice
func (s *StringOrStringSlice) UnmarshalJSON(data []byte) error {
	// First try to unmarshal as a string
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if str == "" {
			*s = nil
			return nil
		}
		*s = []string{str}
		return nil
	}

	// If that fails, try to unmarshal as an array of strings
	var arr []string
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*s = arr
	return nil
}

var errNullNumber = errors.New("null is not a number")

// FlexInt is an integer that unmarshals from a JSON number (integral or not)
// or from a numeric string. Parse APIs are not consistent about either.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler for FlexInt
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return errNullNumber
	}
	raw = strings.Trim(raw, `"`)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*f = FlexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*f = FlexInt(int64(v))
	return nil
}

type (
	// Config holds the application's configuration settings.
	Config struct {
		SavePath          string            `toml:"SavePath" json:"SavePath"`
		PrefsPath         string            `toml:"PrefsPath" json:"PrefsPath"`
		LogLevel          string            `toml:"LogLevel" json:"LogLevel"`
		LogFormat         string            `toml:"LogFormat" json:"LogFormat"`
		Platform          string            `toml:"Platform" json:"Platform"`
		Endpoints         map[string]string `toml:"Endpoints" json:"Endpoints"`
		Archive           ArchiveConfig     `toml:"Archive" json:"Archive"`
		Torrent           TorrentConfig     `toml:"Torrent" json:"Torrent"`
		RequestTimeoutSec int               `toml:"RequestTimeoutSec" json:"RequestTimeoutSec"`
		LogApiRequests    bool              `toml:"LogApiRequests" json:"LogApiRequests"`
	}

	// ArchiveConfig holds settings for the bulk image archive pipeline.
	ArchiveConfig struct {
		Folder         string `toml:"Folder" json:"Folder"`
		Concurrency    int    `toml:"Concurrency" json:"Concurrency"`       // 0 = unlimited
		ItemTimeoutSec int    `toml:"ItemTimeoutSec" json:"ItemTimeoutSec"` // 0 = none
	}

	// TorrentConfig holds settings for the optional .torrent generated next to an archive.
	TorrentConfig struct {
		Trackers    []string `toml:"Trackers" json:"Trackers"`
		MagnetLinks bool     `toml:"MagnetLinks" json:"MagnetLinks"`
	}

	// ParseResponse is the envelope returned by every parse endpoint.
	ParseResponse struct {
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
		Code FlexInt         `json:"code"`
	}

	// Music is the optional soundtrack attached to a media record.
	Music struct {
		URL    *string
		Title  *string
		Author *string
		Avatar *string
	}

	// MediaRecord is one parsed piece of content. Every field is optional and
	// a nil pointer means the field was absent (or unusable) in the payload.
	MediaRecord struct {
		Title  *string
		Time   *int64
		Author *string
		Avatar *string
		Like   *int64
		Cover  *string
		URL    *string
		Images []string
		Music  *Music
	}
)

// HasImages reports whether the record carries a non-empty image list.
func (r MediaRecord) HasImages() bool {
	return len(r.Images) > 0
}

// Str dereferences an optional string, returning "" when absent.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// DecodeMediaRecord decodes an untrusted payload field by field. A payload that
// is not a JSON object yields an empty record and ok=false; fields of the
// wrong type are dropped individually instead of failing the whole record.
func DecodeMediaRecord(data []byte) (rec MediaRecord, ok bool) {
	fields, ok := decodeObject(data)
	if !ok {
		return MediaRecord{}, false
	}

	rec.Title = optString(fields["title"])
	rec.Time = optInt(fields["time"])
	rec.Author = optString(fields["author"])
	rec.Avatar = optString(fields["avatar"])
	rec.Like = optInt(fields["like"])
	rec.Cover = optString(fields["cover"])
	rec.URL = optString(fields["url"])

	if raw, present := fields["images"]; present {
		var images StringOrStringSlice
		if err := json.Unmarshal(raw, &images); err == nil {
			rec.Images = []string(images)
		}
	}

	if raw, present := fields["music"]; present {
		if m, isObject := decodeObject(raw); isObject {
			rec.Music = &Music{
				URL:    optString(m["url"]),
				Title:  optString(m["title"]),
				Author: optString(m["author"]),
				Avatar: optString(m["avatar"]),
			}
		}
	}

	return rec, true
}

func decodeObject(data []byte) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

// optString treats JSON null and empty strings as absent, matching how the
// presentation layer checks these fields for truthiness.
func optString(raw json.RawMessage) *string {
	if raw == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	return &s
}

func optInt(raw json.RawMessage) *int64 {
	if raw == nil {
		return nil
	}
	var n FlexInt
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	v := int64(n)
	return &v
}

// DecodeParseResponse reads the response envelope. Only a body that is not a
// JSON object is an error; a missing or malformed code reads as 0.
func DecodeParseResponse(data []byte) (ParseResponse, error) {
	fields, ok := decodeObject(data)
	if !ok {
		return ParseResponse{}, errors.New("response body is not a JSON object")
	}
	var resp ParseResponse
	if code := optInt(fields["code"]); code != nil {
		resp.Code = FlexInt(*code)
	}
	resp.Msg = Str(optString(fields["msg"]))
	resp.Data = fields["data"]
	return resp, nil
}

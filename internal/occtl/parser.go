// OCWarden - OpenConnect VPN Administration and Quota Enforcement
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ocwarden

package occtl

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ocwarden/internal/models"
)

// occtl's JSON session record. Field names follow occtl's output verbatim;
// numeric counters arrive as strings. raw_connected_at is a unix timestamp
// and preferred over the formatted "Connected at" when present.
type sessionRecord struct {
	ID             flexInt `json:"ID"`
	Username       string  `json:"Username"`
	RemoteIP       string  `json:"Remote IP"`
	IPv4           string  `json:"IPv4"`
	ConnectedAt    string  `json:"Connected at"`
	RawConnectedAt flexInt `json:"raw_connected_at"`
	RX             flexInt `json:"RX"`
	TX             flexInt `json:"TX"`
	UserAgent      string  `json:"User-Agent"`
}

// flexInt decodes occtl numbers that may be emitted as JSON numbers or as
// quoted strings depending on the occtl version.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// connectedAtLayout matches occtl's formatted connect time.
const connectedAtLayout = "2006-01-02 15:04"

// parseSessions decodes `occtl -j show users` output. Empty output (no
// sessions) decodes to an empty list, not an error.
func parseSessions(data []byte) ([]models.Session, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var records []sessionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(records))
	for _, rec := range records {
		s := models.Session{
			ID:           int(rec.ID),
			Username:     rec.Username,
			ClientAddr:   rec.RemoteIP,
			InternalAddr: rec.IPv4,
			RX:           int64(rec.RX),
			TX:           int64(rec.TX),
			UserAgent:    rec.UserAgent,
		}
		if rec.RawConnectedAt > 0 {
			s.ConnectedAt = time.Unix(int64(rec.RawConnectedAt), 0)
		} else if rec.ConnectedAt != "" {
			if t, err := time.ParseInLocation(connectedAtLayout, rec.ConnectedAt, time.Local); err == nil {
				s.ConnectedAt = t
			}
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// parseStatus folds `occtl show status` key: value lines into a map. The
// daemon answering at all means it is online; the line content is carried
// through for the API without interpretation beyond the session count.
func parseStatus(data []byte) *models.DaemonStatus {
	status := &models.DaemonStatus{
		Online: true,
		Raw:    make(map[string]string),
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		status.Raw[key] = value
		if key == "active_sessions" {
			if n, err := strconv.Atoi(value); err == nil {
				status.ActiveSessions = n
			}
		}
	}
	return status
}

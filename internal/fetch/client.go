package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://api.saiblo.net/api"

// JudgedOK is the state the platform reports for matches that finished judging normally.
const JudgedOK = "评测成功"

type Client struct {
	base       string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

func New(baseURL, token string, logger zerolog.Logger) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url: %s", baseURL)
	}
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	return &Client{
		base:  strings.TrimRight(u.String(), "/"),
		token: token,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		log: logger.With().Str("component", "Fetcher").Logger(),
	}, nil
}

type User struct {
	Username string `json:"username"`
}

type Code struct {
	Entity  string `json:"entity"`
	Version int    `json:"version"`
}

// Seat is one player slot of a listed match. Code is nil when the seat had no program.
type Seat struct {
	User User  `json:"user"`
	Code *Code `json:"code"`
}

type MatchSummary struct {
	ID         int64  `json:"id"`
	CreateTime string `json:"create_time"`
	State      string `json:"state"`
	Info       []Seat `json:"info"`
}

// Created parses the platform's RFC 1123 creation time.
func (m MatchSummary) Created() (time.Time, error) {
	t, err := time.Parse(time.RFC1123Z, m.CreateTime)
	if err != nil {
		return time.Parse(time.RFC1123, m.CreateTime)
	}
	return t, nil
}

// Judged reports whether the match finished judging with a program in every seat.
func (m MatchSummary) Judged() bool {
	if m.State != JudgedOK {
		return false
	}
	for _, s := range m.Info {
		if s.Code == nil {
			return false
		}
	}
	return true
}

func (m MatchSummary) HasPlayer(substr string) bool {
	for _, s := range m.Info {
		if strings.Contains(s.User.Username, substr) {
			return true
		}
	}
	return false
}

type Page struct {
	Count   int            `json:"count"`
	Results []MatchSummary `json:"results"`
}

// ListMatches returns one page of the matches involving username, newest first.
func (c *Client) ListMatches(ctx context.Context, username string, limit, offset int) (Page, error) {
	var page Page
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("username", username)

	c.log.Debug().Int("limit", limit).Int("offset", offset).Str("username", username).Msg("Query matches")
	body, err := c.get(ctx, c.base+"/matches/?"+q.Encode())
	if err != nil {
		return page, err
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return page, fmt.Errorf("decode match page: %w", err)
	}
	return page, nil
}

// DownloadReplay returns the replay of match id as NDJSON, one record per line. The platform
// serves either NDJSON or a JSON array of records; both are accepted.
func (c *Client) DownloadReplay(ctx context.Context, id int64) ([]byte, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/matches/%d/download/", c.base, id))
	if err != nil {
		return nil, err
	}
	out, err := normalizeReplay(body)
	if err != nil {
		return nil, fmt.Errorf("replay %d: %w", id, err)
	}
	c.log.Info().Int64("match_id", id).Str("size", humanize.Bytes(uint64(len(body)))).Msg("Replay downloaded")
	return out, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, fmt.Errorf("GET %s: status=%d body=%s", u, resp.StatusCode, msg)
	}
	return body, nil
}

func normalizeReplay(body []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty replay")
	}
	var out bytes.Buffer
	if trimmed[0] == '[' {
		var recs []json.RawMessage
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("decode replay array: %w", err)
		}
		for _, r := range recs {
			if err := json.Compact(&out, r); err != nil {
				return nil, err
			}
			out.WriteByte('\n')
		}
		return out.Bytes(), nil
	}
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("replay line is not JSON: %.40s", line)
		}
		out.Write(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

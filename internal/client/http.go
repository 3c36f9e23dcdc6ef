//*****************************************************************************
// Copyright 2024-2025 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//*****************************************************************************

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/MaxChangInnodisk/ivit-i-web-api/internal/utils/bcode"
)

// maxErrorBody bounds how much of a failed response ends up in the error.
const maxErrorBody = 4 << 10

// Client talks JSON to an HTTP service rooted at base.
type Client struct {
	base *url.URL
	http *http.Client
}

func NewClient(base *url.URL, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: base, http: hc}
}

// Base returns the service root.
func (c *Client) Base() *url.URL {
	return c.base
}

// checkError turns a 4xx/5xx reply into a *bcode.Bcode, keeping the
// business code when the peer sent one.
func checkError(status int, body []byte) error {
	if status < http.StatusBadRequest {
		return nil
	}
	apiError := &bcode.Bcode{HTTPCode: int32(status)}
	if err := json.Unmarshal(body, apiError); err != nil || apiError.Message == "" {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		apiError.Message = string(bytes.TrimSpace(body))
		if apiError.Message == "" {
			apiError.Message = http.StatusText(status)
		}
	}
	return apiError
}

func encodeBody(reqData any) (io.Reader, error) {
	switch v := reqData.(type) {
	case nil:
		return nil, nil
	case io.Reader:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

// send performs one round trip and returns the body of a successful reply.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, accept string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	if err := checkError(resp.StatusCode, data); err != nil {
		return nil, nil, err
	}
	return data, resp.Header, nil
}

// Do sends reqData as JSON (or verbatim when it is an io.Reader) and decodes
// the reply into respData.
func (c *Client) Do(ctx context.Context, method, path string, reqData, respData any) error {
	body, err := encodeBody(reqData)
	if err != nil {
		return err
	}
	data, _, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	if len(data) > 0 && respData != nil {
		if err := json.Unmarshal(data, respData); err != nil {
			return fmt.Errorf("unmarshal: %w", err)
		}
	}
	return nil
}

// Fetch returns the raw body of a GET request with its content type.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, string, error) {
	data, header, err := c.send(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, "", err
	}
	return data, header.Get("Content-Type"), nil
}
